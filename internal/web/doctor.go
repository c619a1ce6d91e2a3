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

const dateFilterLayout = "2006-01-02"

func (rt *Router) doctorDashboard(c *gin.Context) {
	rt.renderDoctorDashboard(c, rt.page(c), http.StatusOK, "")
}

func (rt *Router) renderDoctorDashboard(c *gin.Context, page *carebook.Page, status int, msg string) {
	filter := queryStatus(c)
	date := strings.TrimSpace(c.Query("date"))
	if _, err := time.Parse(dateFilterLayout, date); err != nil {
		date = ""
	}

	list, err := page.API.DoctorAppointments(c.Request.Context(), apiclient.DoctorAppointmentsQuery{
		Status: filter,
		Date:   date,
		Page:   queryPage(c),
	})
	if rt.unauthorized(c, page, err) {
		return
	}

	data := rt.base(c, page, "Doctor Dashboard")
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
	data["Date"] = date
	data["Statuses"] = statuses
	data["Appointments"] = list.Appointments
	data["ReturnQuery"] = returnQuery(c)
	data["Pager"] = paginate("/doctor/dashboard", c.Request.URL.Query(), list.Page)

	c.HTML(status, "doctor_dashboard.html", data)
}

func (rt *Router) updateAppointmentStatus(c *gin.Context) {
	page := rt.page(c)

	form := validation.StatusUpdateForm{
		AppointmentID: c.Param("id"),
		Status:        strings.ToUpper(strings.TrimSpace(c.PostForm("status"))),
	}
	if err := rt.validate.Struct(&form); err != nil {
		msg := "Invalid status update"
		if fe, ok := fieldErrors(err); ok {
			msg = fe.Error()
		}
		rt.renderDoctorDashboard(c, page, http.StatusUnprocessableEntity, msg)
		return
	}

	err := page.API.UpdateAppointmentStatus(c.Request.Context(), apiclient.StatusUpdate{
		Status:        form.Status,
		AppointmentID: form.AppointmentID,
	})
	if rt.unauthorized(c, page, err) {
		return
	}
	if err != nil {
		c.Error(err)
		rt.renderDoctorDashboard(c, page, apiStatus(err), apiclient.Message(err, "Failed to update appointment status"))
		return
	}

	notice := noticeCompleted
	if form.Status == apiclient.StatusCancelled {
		notice = noticeCancelled
	}
	back(c, "/doctor/dashboard", notice)
}
