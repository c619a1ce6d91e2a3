package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MrEthical07/carebook"
	"github.com/MrEthical07/carebook/apiclient"
	"github.com/MrEthical07/carebook/guard"
	"github.com/MrEthical07/carebook/internal/logging"
	"github.com/MrEthical07/carebook/internal/rate"
	"github.com/MrEthical07/carebook/session"
	"github.com/MrEthical07/carebook/validation"
)

func (rt *Router) loginPage(c *gin.Context) {
	page := rt.page(c)
	form := validation.LoginForm{}
	form.Normalize()

	data := rt.base(c, page, "Login")
	data["Form"] = form
	c.HTML(http.StatusOK, "login.html", data)
}

func (rt *Router) login(c *gin.Context) {
	page := rt.page(c)
	ctx := c.Request.Context()

	var form validation.LoginForm
	_ = c.ShouldBind(&form)
	form.Normalize()

	data := rt.base(c, page, "Login")
	data["Form"] = validation.LoginForm{Email: form.Email, Role: form.Role}

	if err := rt.validate.Struct(&form); err != nil {
		if fe, ok := fieldErrors(err); ok {
			data["Errors"] = fe
			c.HTML(http.StatusUnprocessableEntity, "login.html", data)
			return
		}
		c.Error(err)
		data["Error"] = "Login failed. Please check your credentials."
		c.HTML(http.StatusBadRequest, "login.html", data)
		return
	}

	if rt.throttled(c, form.Email) {
		data["Error"] = "Too many failed login attempts. Please try again later."
		c.HTML(http.StatusTooManyRequests, "login.html", data)
		return
	}

	resp, err := page.API.Login(ctx, apiclient.LoginRequest{
		Email:    form.Email,
		Password: form.Password,
		Role:     session.Role(form.Role),
	})
	if err != nil {
		logging.FromGin(c, rt.Logger).WithError(err).WithField("email", form.Email).Info("login rejected")
		rt.loginFailed(c, form.Email)
		data["Error"] = "Login failed. Please check your credentials."
		c.HTML(http.StatusUnauthorized, "login.html", data)
		return
	}
	rt.loginSucceeded(c, form.Email)

	rt.startSession(c, page, resp, noticeLogin)
}

func (rt *Router) registerPage(c *gin.Context) {
	page := rt.page(c)
	doctor := strings.EqualFold(c.Query("role"), "doctor")
	rt.renderRegister(c, page, http.StatusOK, doctor, validation.DoctorRegisterForm{}, nil, "")
}

func (rt *Router) register(c *gin.Context) {
	page := rt.page(c)
	ctx := c.Request.Context()
	doctor := strings.EqualFold(c.PostForm("role"), "doctor")

	var form validation.DoctorRegisterForm
	_ = c.ShouldBind(&form)
	form.Normalize()

	var (
		resp *apiclient.AuthResponse
		err  error
	)
	if doctor {
		err = rt.validate.Struct(&form)
		if err == nil {
			resp, err = page.API.RegisterDoctor(ctx, apiclient.DoctorRegistration{
				Name:           form.Name,
				Email:          form.Email,
				Password:       form.Password,
				Specialization: form.Specialization,
				PhotoURL:       form.PhotoURL,
			})
		}
	} else {
		patient := validation.PatientRegisterForm{
			Name:     form.Name,
			Email:    form.Email,
			Password: form.Password,
			PhotoURL: form.PhotoURL,
		}
		err = rt.validate.Struct(&patient)
		if err == nil {
			resp, err = page.API.RegisterPatient(ctx, apiclient.PatientRegistration{
				Name:     patient.Name,
				Email:    patient.Email,
				Password: patient.Password,
				PhotoURL: patient.PhotoURL,
			})
		}
	}

	form.Password = ""
	if fe, ok := fieldErrors(err); ok {
		rt.renderRegister(c, page, http.StatusUnprocessableEntity, doctor, form, fe, "")
		return
	}
	if err != nil {
		logging.FromGin(c, rt.Logger).WithError(err).Info("registration rejected")
		msg := apiclient.Message(err, "Registration failed. Please try again.")
		rt.renderRegister(c, page, apiStatus(err), doctor, form, nil, msg)
		return
	}

	rt.startSession(c, page, resp, noticeRegistered)
}

func (rt *Router) renderRegister(c *gin.Context, page *carebook.Page, status int, doctor bool, form validation.DoctorRegisterForm, fe validation.FieldErrors, msg string) {
	data := rt.base(c, page, "Register")
	data["Doctor"] = doctor
	data["Form"] = form
	data["Error"] = msg
	if fe != nil {
		data["Errors"] = fe
	}

	specs := []string{}
	if doctor {
		var err error
		if specs, err = page.API.Specializations(c.Request.Context()); err != nil {
			specs = []string{}
		}
	}
	data["Specializations"] = specs

	c.HTML(status, "register.html", data)
}

// startSession logs the page's store in and sends the user to their home.
func (rt *Router) startSession(c *gin.Context, page *carebook.Page, resp *apiclient.AuthResponse, notice string) {
	if err := page.Store.Login(c.Request.Context(), resp.Token, resp.User); err != nil {
		if !errors.Is(err, session.ErrPersistFailed) {
			c.Error(err)
			c.HTML(http.StatusBadGateway, "login.html", gin.H{
				"Title":  "Login",
				"Error":  "Login failed. Please try again.",
				"Errors": validation.FieldErrors{},
				"Form":   validation.LoginForm{Role: string(resp.User.Role)},
			})
			return
		}
		logging.FromGin(c, rt.Logger).WithError(err).Warn("session not persisted, it ends with this page")
	}

	home := rt.Portal.URL(guard.HomeFor(resp.User.Role))
	c.Redirect(http.StatusSeeOther, withNotice(home, notice))
}

func (rt *Router) logout(c *gin.Context) {
	page := rt.page(c)
	if err := page.Store.Logout(c.Request.Context()); err != nil {
		logging.FromGin(c, rt.Logger).WithError(err).Warn("logout did not erase stored session")
	}
	c.Redirect(http.StatusSeeOther, withNotice(rt.Portal.URL(guard.Login), noticeLogout))
}

// throttled reports whether email or the client address used up its failed-login
// budget. An unreachable Redis lets the attempt through.
func (rt *Router) throttled(c *gin.Context, email string) bool {
	if rt.throttle == nil {
		return false
	}
	err := rt.throttle.Check(c.Request.Context(), email, c.ClientIP())
	if errors.Is(err, rate.ErrRateLimited) {
		logging.FromGin(c, rt.Logger).WithField("email", email).Warn("login throttled")
		return true
	}
	if err != nil {
		logging.FromGin(c, rt.Logger).WithError(err).Warn("login throttle unavailable")
	}
	return false
}

func (rt *Router) loginFailed(c *gin.Context, email string) {
	if rt.throttle == nil {
		return
	}
	if err := rt.throttle.Fail(c.Request.Context(), email, c.ClientIP()); err != nil && !errors.Is(err, rate.ErrRateLimited) {
		logging.FromGin(c, rt.Logger).WithError(err).Warn("record failed login")
	}
}

func (rt *Router) loginSucceeded(c *gin.Context, email string) {
	if rt.throttle == nil {
		return
	}
	if err := rt.throttle.Reset(c.Request.Context(), email); err != nil {
		logging.FromGin(c, rt.Logger).WithError(err).Warn("reset login throttle")
	}
}
