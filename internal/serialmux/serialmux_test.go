package serialmux

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/dragtree/internal/monitoring"
)

func localHostRequest(method, path string, body *strings.Reader) *http.Request {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, body)
	}
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

func receive(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case line := <-ch:
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for line")
		return ""
	}
}

func TestSendCommand(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	if err := mux.SendCommand("L 1 green 1"); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if err := mux.SendCommand("LC\n"); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	got := port.Commands()
	if len(got) != 2 || got[0] != "L 1 green 1" || got[1] != "LC" {
		t.Errorf("written = %q", got)
	}

	port.WriteError = errors.New("unplugged")
	if err := mux.SendCommand("DC"); err == nil || err.Error() != "unplugged" {
		t.Errorf("expected write error, got %v", err)
	}

	port.ShortWrite = true
	if err := mux.SendCommand("DC"); !errors.Is(err, ErrWriteFailed) {
		t.Errorf("expected ErrWriteFailed, got %v", err)
	}
}

func TestInitialize_SendsHandshake(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	if err := mux.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	got := port.Commands()
	if strings.Join(got, ",") != "LC,DC,Q" {
		t.Errorf("handshake = %q", got)
	}

	port.WriteError = errors.New("unplugged")
	if err := mux.Initialize(); err == nil || !strings.Contains(err.Error(), `"LC"`) {
		t.Errorf("expected wrapped handshake error, got %v", err)
	}
}

func TestMonitor_FansOutLines(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	t.Cleanup(func() { mux.Close() })

	_, a := mux.Subscribe()
	idB, b := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	port.AddReadData([]byte("D 4 1\nA 26 31000\n"))
	for _, ch := range []chan string{a, b} {
		if got := receive(t, ch); got != "D 4 1" {
			t.Errorf("first line = %q", got)
		}
		if got := receive(t, ch); got != "A 26 31000" {
			t.Errorf("second line = %q", got)
		}
	}

	mux.Unsubscribe(idB)
	if _, ok := <-b; ok {
		t.Error("unsubscribed channel should be closed")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Monitor returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not stop")
	}
}

func TestClose_ClosesSubscribersAndPort(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	_, ch := mux.Subscribe()

	if err := mux.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("subscriber channel should be closed")
	}
	if !port.Closed {
		t.Error("port should be closed")
	}
}

func TestParseEvent(t *testing.T) {
	tests := []struct {
		line    string
		want    Event
		wantErr bool
	}{
		{"D 4 1", Event{Type: EventTypeDigital, Pin: 4, Value: 1}, false},
		{"D 10 0\r", Event{Type: EventTypeDigital, Pin: 10, Value: 0}, false},
		{"A 26 31000", Event{Type: EventTypeAnalog, Pin: 26, Value: 31000}, false},
		{"# dragtree io v2", Event{Type: EventTypeInfo, Text: "dragtree io v2"}, false},
		{"hello", Event{Type: EventTypeUnknown, Text: "hello"}, false},
		{"D 4", Event{}, true},
		{"D x 1", Event{}, true},
		{"D 4 2", Event{}, true},
		{"A 26 70000", Event{}, true},
		{"A -1 5", Event{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseEvent(tt.line)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

type recordingSink struct {
	digital map[int]bool
	analog  map[int]uint16
}

func (s *recordingSink) OnDigital(pin int, level bool)  { s.digital[pin] = level }
func (s *recordingSink) OnAnalog(pin int, value uint16) { s.analog[pin] = value }

func TestHandleEvent(t *testing.T) {
	original := monitoring.Logf
	t.Cleanup(func() { monitoring.Logf = original })
	var logged []string
	monitoring.SetLogger(func(format string, v ...interface{}) { logged = append(logged, format) })

	sink := &recordingSink{digital: map[int]bool{}, analog: map[int]uint16{}}
	for _, line := range []string{"D 4 1", "D 5 0", "A 26 1234", "# boot", "noise"} {
		if err := HandleEvent(sink, line); err != nil {
			t.Fatalf("HandleEvent(%q): %v", line, err)
		}
	}
	if !sink.digital[4] || sink.digital[5] {
		t.Errorf("digital = %v", sink.digital)
	}
	if sink.analog[26] != 1234 {
		t.Errorf("analog = %v", sink.analog)
	}
	if len(logged) != 2 {
		t.Errorf("expected info and unknown lines logged, got %d", len(logged))
	}
	if err := HandleEvent(sink, "D 4 7"); err == nil {
		t.Error("expected error for bad level")
	}
}

func TestPortOptions(t *testing.T) {
	opts, err := PortOptions{}.Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if opts.BaudRate != DefaultBaudRate || opts.DataBits != 8 || opts.StopBits != 1 || opts.Parity != "N" {
		t.Errorf("defaults = %+v", opts)
	}

	mode, err := PortOptions{BaudRate: 9600, StopBits: 2, Parity: "even"}.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode: %v", err)
	}
	if mode.BaudRate != 9600 || mode.DataBits != 8 {
		t.Errorf("mode = %+v", mode)
	}

	for _, bad := range []PortOptions{{DataBits: 9}, {StopBits: 3}, {Parity: "mark"}} {
		if _, err := bad.SerialMode(); err == nil {
			t.Errorf("expected error for %+v", bad)
		}
	}
}

func TestAdminRoutes_SendCommand(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	form := url.Values{"command": {"W 2"}}
	req := localHostRequest(http.MethodPost, "/debug/send-command-api", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	httpMux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := port.Commands(); len(got) != 1 || got[0] != "W 2" {
		t.Errorf("written = %q", got)
	}

	rec = httptest.NewRecorder()
	httpMux.ServeHTTP(rec, localHostRequest(http.MethodGet, "/debug/send-command-api", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	httpMux.ServeHTTP(rec, localHostRequest(http.MethodGet, "/debug/send-command", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "IO board console") {
		t.Errorf("console page status = %d", rec.Code)
	}
}

func TestDisabledSerialMux(t *testing.T) {
	d := NewDisabledSerialMux()
	if err := d.Initialize(); err != nil {
		t.Errorf("Initialize: %v", err)
	}
	if err := d.SendCommand("LC"); err != nil {
		t.Errorf("SendCommand: %v", err)
	}
	_, ch := d.Subscribe()
	if err := d.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed")
	}
	_, late := d.Subscribe()
	if _, ok := <-late; ok {
		t.Error("subscribe after close should return a closed channel")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Monitor(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Monitor returned %v", err)
	}
}
