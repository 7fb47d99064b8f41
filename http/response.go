package httpx

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"strconv"
	"time"

	"static-httpd/docroot"
)

type Status int

const (
	StatusOK             Status = 200
	StatusNotModified    Status = 304
	StatusBadRequest     Status = 400
	StatusNotFound       Status = 404
	StatusNotImplemented Status = 501
)

func (s Status) Reason() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNotModified:
		return "Not Modified"
	case StatusBadRequest:
		return "Bad Request"
	case StatusNotFound:
		return "Not Found"
	case StatusNotImplemented:
		return "Not Implemented"
	}
	return "Status " + strconv.Itoa(int(s))
}

// HeaderDateLayout formats Date and Last-Modified. It parses back with DateLayout,
// so a client echoing Last-Modified in If-Modified-Since is understood.
const HeaderDateLayout = "Mon Jan 02 15:04:05 GMT 2006"

const DefaultServerName = "HTTP/1.1 server"

// Used for the Date header. Can be mocked.
var now = time.Now

func FormatDate(t time.Time) string {
	return t.UTC().Format(HeaderDateLayout)
}

type Response struct {
	Status  Status
	Headers []HeaderField
	Body    []byte
}

// WriteResponse writes the status line, Server and Date, res.Headers, the
// blank line and the body, then flushes.
func WriteResponse(w io.Writer, res *Response, serverName string) error {
	if serverName == "" {
		serverName = DefaultServerName
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "HTTP/1.1 %d %s\r\n", res.Status, res.Status.Reason())
	fmt.Fprintf(bw, "Server: %s\r\n", serverName)
	fmt.Fprintf(bw, "Date: %s\r\n", FormatDate(now()))
	for _, h := range res.Headers {
		fmt.Fprintf(bw, "%s: %s\r\n", h.Name, h.Value)
	}
	bw.WriteString("\r\n")
	bw.Write(res.Body)
	return bw.Flush()
}

// lastModified rounds t up to the whole second so that echoing the header
// back in If-Modified-Since is never earlier than the file's mtime.
func lastModified(t time.Time) time.Time {
	s := t.Truncate(time.Second)
	if s.Before(t) {
		s = s.Add(time.Second)
	}
	return s
}

func fileResponse(res docroot.Resource, body []byte) *Response {
	return &Response{
		Status: StatusOK,
		Headers: []HeaderField{
			{"Last-Modified", FormatDate(lastModified(res.ModTime))},
			{"Content-Length", strconv.FormatInt(res.Size, 10)},
		},
		Body: body,
	}
}

// errorResponse builds the fixed HTML page for s. detail is the method for
// 501 and the requested path for 404.
func errorResponse(s Status, detail string) *Response {
	return &Response{Status: s, Body: errorPage(s, detail)}
}

func errorPage(s Status, detail string) []byte {
	var title, heading string
	switch s {
	case StatusNotFound:
		title = "File Not Found"
		heading = "404 Not Found: " + html.EscapeString(detail)
	case StatusNotImplemented:
		title = s.Reason()
		heading = "501 Not Implemented: " + html.EscapeString(detail) + " method."
	default:
		title = s.Reason()
		heading = fmt.Sprintf("%d %s", s, s.Reason())
	}
	return []byte("<HTML>\r\n" +
		"<HEAD><TITLE>" + title + "</TITLE></HEAD>\r\n" +
		"<BODY>\r\n" +
		"<H2>" + heading + "</H2>\r\n" +
		"</BODY></HTML>\r\n")
}
