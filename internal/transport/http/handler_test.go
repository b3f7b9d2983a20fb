package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/jobs"
	"slotbook/backend/internal/service/appointments"
	"slotbook/backend/internal/store"
	"slotbook/backend/internal/store/memory"
)

var (
	userX   = uuid.MustParse("00000000-0000-0000-0000-0000000000c1")
	userY   = uuid.MustParse("00000000-0000-0000-0000-0000000000c2")
	staffA  = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	haircut = uuid.MustParse("00000000-0000-0000-0000-0000000000e1")
)

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
}

func newRouter(t *testing.T) (*gin.Engine, *jobs.Recorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := memory.NewDirectory()
	dir.PutCustomer(domain.Customer{ID: userX, Name: "x"})
	dir.PutCustomer(domain.Customer{ID: userY, Name: "y"})
	dir.PutStaff(domain.Staff{ID: staffA, Name: "a"})
	dir.PutService(domain.Service{ID: haircut, Name: "haircut", DurationMinutes: 30})

	rec := &jobs.Recorder{}
	svc := appointments.NewService(memory.NewAppointmentRepo(store.SlotPolicy{}), dir, rec, appointments.Options{
		Now: func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) },
	})
	return NewHandler(svc, nil).Router(), rec
}

func do(t *testing.T, r http.Handler, method, path string, user uuid.UUID, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Encode error: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != uuid.Nil {
		req.Header.Set(userIDHeader, user.String())
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("response is not an envelope: %s", w.Body.String())
		}
	}
	return w.Code, env
}

func TestBookingFlow(t *testing.T) {
	r, rec := newRouter(t)
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	body := map[string]any{"staffId": staffA, "serviceId": haircut, "startTime": start}

	code, env := do(t, r, http.MethodPost, "/v1/appointments", userX, body)
	if code != http.StatusCreated {
		t.Fatalf("create status = %d (%s)", code, env.Error)
	}
	var appt appointmentDTO
	if err := json.Unmarshal(env.Data, &appt); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if appt.Status != "scheduled" || !appt.EndTime.Equal(start.Add(30*time.Minute)) {
		t.Fatalf("appointment = %+v", appt)
	}
	if rec.Count(jobs.KindConfirmation) != 1 || rec.Count(jobs.KindReminder) != 1 {
		t.Fatalf("jobs = %+v", rec.Jobs())
	}

	code, _ = do(t, r, http.MethodPost, "/v1/appointments", userY, body)
	if code != http.StatusConflict {
		t.Fatalf("second booking status = %d, want 409", code)
	}

	code, env = do(t, r, http.MethodGet, "/v1/staff/"+staffA.String()+"/busy?date=2026-03-10", uuid.Nil, nil)
	if code != http.StatusOK {
		t.Fatalf("busy status = %d", code)
	}
	var busy struct {
		BookedSlots []time.Time `json:"bookedSlots"`
	}
	if err := json.Unmarshal(env.Data, &busy); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if len(busy.BookedSlots) != 1 || !busy.BookedSlots[0].Equal(start) {
		t.Fatalf("busy = %v", busy.BookedSlots)
	}

	code, env = do(t, r, http.MethodPost, "/v1/appointments/"+appt.ID+"/reschedule", userX, map[string]any{"startTime": start.Add(time.Hour)})
	if code != http.StatusOK {
		t.Fatalf("reschedule status = %d (%s)", code, env.Error)
	}

	code, _ = do(t, r, http.MethodPost, "/v1/appointments/"+appt.ID+"/cancel", userY, nil)
	if code != http.StatusForbidden {
		t.Fatalf("foreign cancel status = %d, want 403", code)
	}
	code, _ = do(t, r, http.MethodPost, "/v1/appointments/"+appt.ID+"/cancel", userX, nil)
	if code != http.StatusOK {
		t.Fatalf("cancel status = %d", code)
	}
	code, env = do(t, r, http.MethodPost, "/v1/appointments/"+appt.ID+"/cancel", userX, nil)
	if code != http.StatusBadRequest {
		t.Fatalf("second cancel status = %d, want 400", code)
	}
	if env.Error != appointments.ErrAlreadyCancelled.Error() {
		t.Fatalf("error = %q", env.Error)
	}
}

func TestCheckAvailability(t *testing.T) {
	r, _ := newRouter(t)

	code, env := do(t, r, http.MethodGet, "/v1/staff/"+staffA.String()+"/availability?serviceId="+haircut.String()+"&date=2026-03-10", uuid.Nil, nil)
	if code != http.StatusOK {
		t.Fatalf("status = %d (%s)", code, env.Error)
	}
	var av availabilityDTO
	if err := json.Unmarshal(env.Data, &av); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if len(av.Slots) != 26 || len(av.BookedSlots) != 0 {
		t.Fatalf("slots=%d booked=%d", len(av.Slots), len(av.BookedSlots))
	}
}

func TestErrorStatuses(t *testing.T) {
	r, _ := newRouter(t)
	missing := uuid.MustParse("00000000-0000-0000-0000-0000000000ff")
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		method string
		path   string
		user   uuid.UUID
		body   any
		want   int
	}{
		{name: "no caller", method: http.MethodPost, path: "/v1/appointments", body: map[string]any{"staffId": staffA, "serviceId": haircut, "startTime": start}, want: http.StatusUnauthorized},
		{name: "bad body", method: http.MethodPost, path: "/v1/appointments", user: userX, body: map[string]any{"staffId": "nope"}, want: http.StatusBadRequest},
		{name: "unknown staff", method: http.MethodPost, path: "/v1/appointments", user: userX, body: map[string]any{"staffId": missing, "serviceId": haircut, "startTime": start}, want: http.StatusNotFound},
		{name: "unknown customer", method: http.MethodPost, path: "/v1/appointments", user: missing, body: map[string]any{"staffId": staffA, "serviceId": haircut, "startTime": start}, want: http.StatusNotFound},
		{name: "bad path id", method: http.MethodGet, path: "/v1/appointments/xyz", user: userX, want: http.StatusBadRequest},
		{name: "unknown appointment", method: http.MethodGet, path: "/v1/appointments/" + missing.String(), user: userX, want: http.StatusNotFound},
		{name: "bad date", method: http.MethodGet, path: "/v1/staff/" + staffA.String() + "/busy?date=tomorrow", want: http.StatusBadRequest},
		{name: "missing service id", method: http.MethodGet, path: "/v1/staff/" + staffA.String() + "/availability?date=2026-03-10", want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := do(t, r, tt.method, tt.path, tt.user, tt.body)
			if code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", code, tt.want, env.Error)
			}
			if env.Status != tt.want || env.Error == "" {
				t.Fatalf("envelope = %+v", env)
			}
		})
	}
}
