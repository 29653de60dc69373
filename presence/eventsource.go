package presence

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// BadStatusCode is returned when the stream endpoint answers non-200.
type BadStatusCode struct {
	StatusCode int
}

func (err *BadStatusCode) Error() string {
	return fmt.Sprintf("bad status code %d", err.StatusCode)
}

// BadContentType is returned when the endpoint does not speak event-stream.
type BadContentType struct {
	ContentType string
}

func (err *BadContentType) Error() string {
	return fmt.Sprintf("bad content-type %s", err.ContentType)
}

// eventSource reads one server-sent-events stream and hands each event's data
// payload to the listener. It performs a single request; retrying is the
// caller's concern.
type eventSource struct {
	client      *http.Client
	url         string
	headers     map[string]string
	lastEventID string
	listener    func(event, data string)
}

const defaultEvent = "message"

// stream opens the URL and pumps events until the stream ends, the context
// is canceled, or an error occurs.
func (s *eventSource) stream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if s.lastEventID != "" {
		req.Header.Set("Last-Event-ID", s.lastEventID)
	}
	for name, value := range s.headers {
		req.Header.Set(name, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &BadStatusCode{StatusCode: resp.StatusCode}
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		return &BadContentType{ContentType: ct}
	}

	data := ""
	event := defaultEvent

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()

		// https://www.w3.org/TR/eventsource/#event-stream-interpretation
		if line == "" {
			if data != "" {
				s.listener(event, data)
				event = defaultEvent
				data = ""
			}
			continue
		}
		split := strings.SplitN(line, ":", 2)
		field := split[0]
		value := ""
		if len(split) == 2 {
			value = strings.TrimPrefix(split[1], " ")
		}
		switch field {
		case "event":
			event = value
		case "id":
			s.lastEventID = value
		case "retry":
			// The server's suggested retry interval is ignored; reconnect
			// timing is owned by the channel's backoff schedule.
			_, _ = strconv.Atoi(value)
		case "data":
			if data != "" {
				data += "\n"
			}
			data += value
		default:
			// ignore
		}
	}
	return scanner.Err()
}

// noTimeout returns a copy of the client with its timeout stripped, since an
// event stream is expected to stay open indefinitely.
func noTimeout(c *http.Client) *http.Client {
	if c == nil {
		return &http.Client{}
	}
	cc := *c
	cc.Timeout = 0
	return &cc
}
