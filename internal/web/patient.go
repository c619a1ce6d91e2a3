package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MrEthical07/carebook"
	"github.com/MrEthical07/carebook/apiclient"
	"github.com/MrEthical07/carebook/validation"
)

const doctorsPerPage = 6

func (rt *Router) patientDashboard(c *gin.Context) {
	rt.renderPatientDashboard(c, rt.page(c), http.StatusOK, nil, "")
}

func (rt *Router) renderPatientDashboard(c *gin.Context, page *carebook.Page, status int, bookingErrs validation.FieldErrors, msg string) {
	ctx := c.Request.Context()
	search := strings.TrimSpace(c.Query("search"))
	specialization := strings.TrimSpace(c.Query("specialization"))

	specs, err := page.API.Specializations(ctx)
	if rt.unauthorized(c, page, err) {
		return
	}
	doctors, err := page.API.Doctors(ctx, apiclient.DoctorsQuery{
		Page:           queryPage(c),
		Limit:          doctorsPerPage,
		Search:         search,
		Specialization: specialization,
	})
	if rt.unauthorized(c, page, err) {
		return
	}

	data := rt.base(c, page, "Find Doctors")
	if err != nil {
		c.Error(err)
		data["Error"] = apiclient.Message(err, "Failed to load doctors. Please try again.")
		doctors = &apiclient.DoctorsPage{}
		if status == http.StatusOK {
			status = apiStatus(err)
		}
	}
	if msg != "" {
		data["Error"] = msg
	}
	data["Search"] = search
	data["Specialization"] = specialization
	data["Specializations"] = specs
	data["Doctors"] = doctors.Doctors
	data["BookingErrors"] = bookingErrs
	data["MinSlot"] = time.Now().Format(validation.DateTimeLayout)
	data["ReturnQuery"] = returnQuery(c)
	data["Pager"] = paginate("/patient/dashboard", c.Request.URL.Query(), doctors.Page)

	c.HTML(status, "patient_dashboard.html", data)
}

func (rt *Router) bookAppointment(c *gin.Context) {
	page := rt.page(c)

	var form validation.BookingForm
	_ = c.ShouldBind(&form)
	form.DoctorID = strings.TrimSpace(form.DoctorID)

	if err := rt.validate.Struct(&form); err != nil {
		fe, _ := fieldErrors(err)
		rt.renderPatientDashboard(c, page, http.StatusUnprocessableEntity, fe, "")
		return
	}

	_, err := page.API.CreateAppointment(c.Request.Context(), apiclient.NewAppointment{
		DoctorID: form.DoctorID,
		Date:     form.Date,
	})
	if rt.unauthorized(c, page, err) {
		return
	}
	if err != nil {
		c.Error(err)
		rt.renderPatientDashboard(c, page, apiStatus(err), nil, apiclient.Message(err, "Failed to book appointment. Please try again."))
		return
	}

	back(c, "/patient/dashboard", noticeBooked)
}

func (rt *Router) patientAppointments(c *gin.Context) {
	rt.renderPatientAppointments(c, rt.page(c), http.StatusOK, "")
}

func (rt *Router) renderPatientAppointments(c *gin.Context, page *carebook.Page, status int, msg string) {
	filter := queryStatus(c)
	list, err := page.API.PatientAppointments(c.Request.Context(), apiclient.PatientAppointmentsQuery{
		Status: filter,
		Page:   queryPage(c),
	})
	if rt.unauthorized(c, page, err) {
		return
	}

	data := rt.base(c, page, "My Appointments")
	if err != nil {
		c.Error(err)
		data["Error"] = apiclient.Message(err, "Failed to load appointments. Please try again.")
		list = &apiclient.AppointmentsPage{}
		if status == http.StatusOK {
			status = apiStatus(err)
		}
	}
	if msg != "" {
		data["Error"] = msg
	}
	data["Status"] = filter
	data["Statuses"] = statuses
	data["Appointments"] = list.Appointments
	data["ReturnQuery"] = returnQuery(c)
	data["Pager"] = paginate("/patient/appointments", c.Request.URL.Query(), list.Page)

	c.HTML(status, "patient_appointments.html", data)
}

func (rt *Router) cancelAppointment(c *gin.Context) {
	page := rt.page(c)

	err := page.API.UpdateAppointmentStatus(c.Request.Context(), apiclient.StatusUpdate{
		Status:        apiclient.StatusCancelled,
		AppointmentID: c.Param("id"),
	})
	if rt.unauthorized(c, page, err) {
		return
	}
	if err != nil {
		c.Error(err)
		rt.renderPatientAppointments(c, page, apiStatus(err), apiclient.Message(err, "Failed to cancel appointment."))
		return
	}

	back(c, "/patient/appointments", noticeCancelled)
}
