package httpx

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Method string

const (
	MethodGet  Method = "GET"
	MethodHead Method = "HEAD"
)

const (
	MaxLineBytes   = 8 << 10
	MaxHeaderLines = 100
)

// DateLayout is accepted in If-Modified-Since, e.g. "Sun Jan 07 10:00:00 GMT 2024".
// Days may be zero-padded, space-padded or a single digit.
const DateLayout = time.UnixDate

// time.Parse gives unknown zone abbreviations a zero offset, so the ones
// accepted are listed with their real offsets.
var zoneOffsets = map[string]int{
	"GMT": 0,
	"UTC": 0,
	"EST": -5 * 3600,
	"EDT": -4 * 3600,
	"CST": -6 * 3600,
	"CDT": -5 * 3600,
	"MST": -7 * 3600,
	"MDT": -6 * 3600,
	"PST": -8 * 3600,
	"PDT": -7 * 3600,
}

// parseDate parses v with DateLayout and rejects zones whose offset is unknown.
func parseDate(v string) (time.Time, error) {
	t, err := time.Parse(DateLayout, v)
	if err != nil {
		return t, err
	}
	name, _ := t.Zone()
	if off, ok := zoneOffsets[name]; ok {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(),
			t.Nanosecond(), time.FixedZone(name, off)), nil
	}
	if t.Location() == time.Local || (strings.HasPrefix(name, "GMT") && len(name) > 3) {
		return t, nil
	}
	return t, fmt.Errorf("unknown time zone %q", name)
}

var (
	ErrIncompleteRequest    = errors.New("incomplete request")
	ErrMalformedRequestLine = errors.New("malformed request line")
	ErrMalformedHeader      = errors.New("malformed header")
	ErrHeaderTooLarge       = errors.New("request header too large")
	ErrBadDate              = errors.New("bad If-Modified-Since date")
)

// ParseError reports why a request could not be parsed. Kind is one of the
// Err* sentinels above and matches with errors.Is.
type ParseError struct {
	Kind error
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	msg := e.Kind.Error()
	if e.Line != "" {
		msg += fmt.Sprintf(" %q", e.Line)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() []error { return []error{e.Kind, e.Err} }

type HeaderField struct {
	Name  string
	Value string
}

// Request is the request line and headers of one HTTP request.
type Request struct {
	Method  Method
	Target  string
	Version string
	Headers []HeaderField

	IfModifiedSince    time.Time
	HasIfModifiedSince bool
}

// Header returns the first value of the named header, compared case-insensitively.
func (r *Request) Header(name string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// similar to readLineSlice() in net/textproto/reader.go
func readLine(br *bufio.Reader) (string, error) {
	var line []byte
	for {
		l, more, err := br.ReadLine()
		if err != nil {
			return "", err
		}
		if line == nil && !more {
			return string(l), nil
		}
		line = append(line, l...)
		if len(line) > MaxLineBytes {
			return "", ErrHeaderTooLarge
		}
		if !more {
			break
		}
	}
	return string(line), nil
}

// ReadRequest reads the request line and headers up to the blank line that
// ends them. No body is read.
func ReadRequest(br *bufio.Reader) (*Request, error) {
	var lines []string
	for {
		line, err := readLine(br)
		if errors.Is(err, ErrHeaderTooLarge) {
			return nil, &ParseError{Kind: ErrHeaderTooLarge}
		}
		if err != nil {
			return nil, &ParseError{Kind: ErrIncompleteRequest, Err: err}
		}
		if line == "" {
			break
		}
		// the request line plus at most MaxHeaderLines headers
		if len(lines) >= MaxHeaderLines+1 {
			return nil, &ParseError{Kind: ErrHeaderTooLarge}
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil, &ParseError{Kind: ErrMalformedRequestLine}
	}

	req := &Request{}
	for _, line := range lines[1:] {
		i := strings.IndexByte(line, ':')
		if i <= 0 {
			return nil, &ParseError{Kind: ErrMalformedHeader, Line: line}
		}
		req.Headers = append(req.Headers, HeaderField{
			Name:  line[:i],
			Value: strings.TrimSpace(line[i+1:]),
		})
	}

	// The date is checked before the request line is looked at.
	if v, ok := req.Header("If-Modified-Since"); ok {
		t, err := parseDate(v)
		if err != nil {
			return nil, &ParseError{Kind: ErrBadDate, Line: v, Err: err}
		}
		req.IfModifiedSince = t
		req.HasIfModifiedSince = true
	}

	fields := strings.Fields(lines[0])
	if len(fields) < 2 {
		return nil, &ParseError{Kind: ErrMalformedRequestLine, Line: lines[0]}
	}
	req.Method = Method(strings.ToUpper(fields[0]))
	req.Target = fields[1]
	if len(fields) > 2 {
		req.Version = fields[2]
	}
	return req, nil
}
