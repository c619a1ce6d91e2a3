package stubapi

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	statusPending   = "PENDING"
	statusCompleted = "COMPLETED"
	statusCancelled = "CANCELLED"
)

var slotLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 1 {
		return def
	}
	return v
}

func (s *Server) doctors(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", s.cfg.PageLimit)
	search := strings.ToLower(strings.TrimSpace(c.Query("search")))
	spec := strings.TrimSpace(c.Query("specialization"))

	s.mu.RLock()
	var matched []*account
	for _, a := range s.accounts {
		if a.Role != "DOCTOR" {
			continue
		}
		if spec != "" && a.Specialization != spec {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(a.Name), search) && !strings.Contains(strings.ToLower(a.Specialization), search) {
			continue
		}
		matched = append(matched, a)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Name != matched[j].Name {
			return matched[i].Name < matched[j].Name
		}
		return matched[i].ID < matched[j].ID
	})

	start, end, pages := paginate(len(matched), page, limit)
	out := make([]gin.H, 0, end-start)
	for _, a := range matched[start:end] {
		d := gin.H{"id": a.ID, "name": a.Name, "email": a.Email, "specialization": a.Specialization}
		if a.PhotoURL != "" {
			d["photo_url"] = a.PhotoURL
		}
		out = append(out, d)
	}

	c.JSON(http.StatusOK, gin.H{
		"doctors":    out,
		"total":      len(matched),
		"page":       page,
		"limit":      limit,
		"totalPages": pages,
	})
}

func (s *Server) patientAppointments(c *gin.Context) {
	me := current(c)
	s.listAppointments(c, func(a *appointment) bool { return a.PatientID == me.ID }, "", true)
}

func (s *Server) doctorAppointments(c *gin.Context) {
	me := current(c)
	s.listAppointments(c, func(a *appointment) bool { return a.DoctorID == me.ID }, strings.TrimSpace(c.Query("date")), false)
}

func (s *Server) listAppointments(c *gin.Context, mine func(*appointment) bool, date string, forPatient bool) {
	page := queryInt(c, "page", 1)
	status := strings.ToUpper(strings.TrimSpace(c.Query("status")))

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*appointment
	for _, a := range s.appointments {
		if !mine(a) {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		if date != "" && a.Date.Format("2006-01-02") != date {
			continue
		}
		matched = append(matched, a)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.Before(matched[j].Date)
		}
		return matched[i].ID < matched[j].ID
	})

	start, end, pages := paginate(len(matched), page, s.cfg.PageLimit)
	out := make([]gin.H, 0, end-start)
	for _, a := range matched[start:end] {
		out = append(out, s.appointmentJSON(a, forPatient, !forPatient))
	}

	c.JSON(http.StatusOK, gin.H{
		"appointments": out,
		"total":        len(matched),
		"page":         page,
		"limit":        s.cfg.PageLimit,
		"totalPages":   pages,
	})
}

// appointmentJSON must be called with s.mu held.
func (s *Server) appointmentJSON(a *appointment, withDoctor, withPatient bool) gin.H {
	out := gin.H{
		"id":        a.ID,
		"doctorId":  a.DoctorID,
		"patientId": a.PatientID,
		"date":      a.Date.UTC().Format(time.RFC3339),
		"status":    a.Status,
	}
	if d, ok := s.accounts[a.DoctorID]; ok && withDoctor {
		party := gin.H{"name": d.Name, "specialization": d.Specialization}
		if d.PhotoURL != "" {
			party["photo_url"] = d.PhotoURL
		}
		out["doctor"] = party
	}
	if p, ok := s.accounts[a.PatientID]; ok && withPatient {
		party := gin.H{"name": p.Name, "email": p.Email}
		if p.PhotoURL != "" {
			party["photo_url"] = p.PhotoURL
		}
		out["patient"] = party
	}
	return out
}

type createInput struct {
	DoctorID string `json:"doctorId" binding:"required"`
	Date     string `json:"date" binding:"required"`
}

func (s *Server) createAppointment(c *gin.Context) {
	var input createInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "doctorId and date are required"})
		return
	}

	var when time.Time
	var err error
	for _, layout := range slotLayouts {
		if when, err = time.ParseInLocation(layout, input.Date, time.Local); err == nil {
			break
		}
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid appointment date"})
		return
	}
	if !when.After(s.now()) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Appointment date must be in the future"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.accounts[input.DoctorID]
	if !ok || doc.Role != "DOCTOR" {
		c.JSON(http.StatusNotFound, gin.H{"message": "Doctor not found"})
		return
	}

	a := &appointment{
		ID:        uuid.NewString(),
		DoctorID:  doc.ID,
		PatientID: current(c).ID,
		Date:      when,
		Status:    statusPending,
		CreatedAt: s.now(),
	}
	s.appointments[a.ID] = a

	c.JSON(http.StatusCreated, s.appointmentJSON(a, true, false))
}

type statusInput struct {
	Status        string `json:"status" binding:"required,oneof=COMPLETED CANCELLED"`
	AppointmentID string `json:"appointment_id" binding:"required"`
}

func (s *Server) updateStatus(c *gin.Context) {
	var input statusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid status update"})
		return
	}
	me := current(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[input.AppointmentID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "Appointment not found"})
		return
	}

	switch {
	case me.Role == "DOCTOR" && a.DoctorID == me.ID:
	case me.Role == "PATIENT" && a.PatientID == me.ID && input.Status == statusCancelled:
	default:
		c.JSON(http.StatusForbidden, gin.H{"message": "Access denied"})
		return
	}

	if a.Status != statusPending {
		c.JSON(http.StatusConflict, gin.H{"message": "Only pending appointments can be updated"})
		return
	}
	a.Status = input.Status

	c.JSON(http.StatusOK, gin.H{"message": "Appointment status updated", "data": s.appointmentJSON(a, true, true)})
}
