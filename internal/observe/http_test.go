package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// withSpans installs an in-memory tracer provider for the duration of t.
// Tests using it must not run in parallel.
func withSpans(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

// serveMux wraps a mux with routes for the calendar link and a failing
// endpoint in Middleware.
func serveMux(m *Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /calendar", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://calendar.google.com/", http.StatusTemporaryRedirect)
	})
	mux.HandleFunc("GET /broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream", http.StatusBadGateway)
	})
	mux.HandleFunc("GET /notes", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# 筆記"))
	})
	return Middleware(m)(mux)
}

func TestMiddleware_Spans(t *testing.T) {
	exp := withSpans(t)
	m, _ := newTestMetrics(t)
	h := serveMux(m)

	tests := []struct {
		target     string
		wantName   string
		wantStatus int
		wantError  bool
	}{
		{target: "/calendar?img_url=x", wantName: "GET /calendar", wantStatus: http.StatusTemporaryRedirect},
		{target: "/broken", wantName: "GET /broken", wantStatus: http.StatusBadGateway, wantError: true},
		{target: "/notes", wantName: "GET /notes", wantStatus: http.StatusOK},
		{target: "/nowhere", wantName: "GET", wantStatus: http.StatusNotFound},
	}
	for _, tc := range tests {
		exp.Reset()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.target, nil))

		if rec.Code != tc.wantStatus {
			t.Errorf("%s: status = %d, want %d", tc.target, rec.Code, tc.wantStatus)
		}
		spans := exp.GetSpans()
		if len(spans) != 1 {
			t.Fatalf("%s: %d spans, want 1", tc.target, len(spans))
		}
		s := spans[0]
		if s.Name != tc.wantName {
			t.Errorf("%s: span name = %q, want %q", tc.target, s.Name, tc.wantName)
		}
		var status int64
		for _, a := range s.Attributes {
			if a.Key == "http.response.status_code" {
				status = a.Value.AsInt64()
			}
		}
		if status != int64(tc.wantStatus) {
			t.Errorf("%s: span status attribute = %d, want %d", tc.target, status, tc.wantStatus)
		}
		if got := s.Status.Code.String() == "Error"; got != tc.wantError {
			t.Errorf("%s: span error = %v, want %v", tc.target, got, tc.wantError)
		}
		if cid := rec.Header().Get(CorrelationHeader); cid != s.SpanContext.TraceID().String() {
			t.Errorf("%s: %s = %q, want the span's trace id", tc.target, CorrelationHeader, cid)
		}
	}
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	withSpans(t)
	const traceID = "0af7651916cd43dd8448eb211c80319c"

	var seen string
	h := Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-b7ad6b7169203331-01")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != traceID {
		t.Errorf("handler saw trace %q, want %q", seen, traceID)
	}
	if got := rec.Header().Get(CorrelationHeader); got != traceID {
		t.Errorf("%s = %q, want %q", CorrelationHeader, got, traceID)
	}
}

func TestMiddleware_DurationByPattern(t *testing.T) {
	withSpans(t)
	m, reader := newTestMetrics(t)
	h := serveMux(m)

	for _, target := range []string{"/calendar?img_url=a", "/calendar?img_url=b", "/notes"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}

	md := findMetric(collect(t, reader), "clubnote.http.request.duration")
	if md == nil {
		t.Fatal("duration metric not recorded")
	}
	hist, ok := md.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("duration metric is %T, want histogram", md.Data)
	}
	counts := map[string]uint64{}
	for _, dp := range hist.DataPoints {
		path, _ := dp.Attributes.Value("path")
		counts[path.AsString()] += dp.Count
	}
	if counts["GET /calendar"] != 2 || counts["GET /notes"] != 1 {
		t.Errorf("counts by path = %v", counts)
	}
}

func TestRecorder_ImplicitStatus(t *testing.T) {
	t.Parallel()
	rec := &recorder{ResponseWriter: httptest.NewRecorder()}
	_, _ = rec.Write([]byte("hello"))
	rec.WriteHeader(http.StatusTeapot)

	if rec.status != http.StatusOK {
		t.Errorf("status = %d, want 200 from the first write", rec.status)
	}
	if rec.bytes != 5 {
		t.Errorf("bytes = %d, want 5", rec.bytes)
	}
	if rec.Unwrap() == nil {
		t.Error("Unwrap returned nil")
	}
}
