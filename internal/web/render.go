package web

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MrEthical07/carebook"
	"github.com/MrEthical07/carebook/apiclient"
	"github.com/MrEthical07/carebook/validation"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	noticeLogin      = "login"
	noticeRegistered = "registered"
	noticeLogout     = "logout"
	noticeExpired    = "expired"
	noticeBooked     = "booked"
	noticeCancelled  = "cancelled"
	noticeCompleted  = "completed"
)

// Only known codes are rendered, never free text from the query string.
var notices = map[string]string{
	noticeLogin:      "Login successful",
	noticeRegistered: "Registration successful! Welcome to Carebook.",
	noticeLogout:     "You have been logged out.",
	noticeExpired:    "Your session has expired. Please log in again.",
	noticeBooked:     "Appointment booked successfully!",
	noticeCancelled:  "Appointment cancelled.",
	noticeCompleted:  "Appointment marked as completed.",
}

var statuses = []string{apiclient.StatusPending, apiclient.StatusCompleted, apiclient.StatusCancelled}

func parseTemplates() (*template.Template, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"slot":        formatSlot,
		"statusClass": statusClass,
		"title":       titleCase,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}

// placeholder renders the loading view for the session middleware.
func (rt *Router) placeholder(w http.ResponseWriter, r *http.Request, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	if err := rt.templates.ExecuteTemplate(w, "loading.html", nil); err != nil {
		rt.Logger.WithError(err).Error("render loading placeholder")
	}
}

// base holds what the layout needs on every page.
func (rt *Router) base(c *gin.Context, page *carebook.Page, title string) gin.H {
	return gin.H{
		"Title":  title,
		"User":   page.Store.User(),
		"Notice": notices[c.Query("notice")],
		"Error":  "",
		"Errors": validation.FieldErrors{},
	}
}

func fieldErrors(err error) (validation.FieldErrors, bool) {
	var fe validation.FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

func withNotice(target, code string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Set("notice", code)
	u.RawQuery = q.Encode()
	return u.String()
}

// back redirects to path, keeping the filters of the current request.
func back(c *gin.Context, path, code string) {
	q := filterQuery(c.Request.URL.Query())
	if code != "" {
		q.Set("notice", code)
	}
	target := path
	if enc := q.Encode(); enc != "" {
		target += "?" + enc
	}
	c.Redirect(http.StatusSeeOther, target)
}

func filterQuery(q url.Values) url.Values {
	out := url.Values{}
	for k, v := range q {
		if k == "notice" || len(v) == 0 || v[0] == "" {
			continue
		}
		out.Set(k, v[0])
	}
	return out
}

// returnQuery carries the current filters into a form action.
func returnQuery(c *gin.Context) template.URL {
	enc := filterQuery(c.Request.URL.Query()).Encode()
	if enc == "" {
		return ""
	}
	return template.URL("?" + enc)
}

func queryPage(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("page"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func queryStatus(c *gin.Context) string {
	s := strings.ToUpper(strings.TrimSpace(c.Query("status")))
	for _, known := range statuses {
		if s == known {
			return s
		}
	}
	return ""
}

// pagerWindow is how many pages either side of the current one get a link. The first
// and last page are always linked.
const pagerWindow = 3

type pageLink struct {
	Number  int
	URL     template.URL
	Current bool
	// Gap stands in for the pages skipped between two links.
	Gap bool
}

type pager struct {
	TotalPages int
	Prev       template.URL
	Next       template.URL
	Links      []pageLink
}

func paginate(path string, q url.Values, p apiclient.Page) pager {
	out := pager{TotalPages: p.TotalPages}
	if p.TotalPages <= 1 {
		return out
	}

	link := func(n int) template.URL {
		v := filterQuery(q)
		v.Set("page", strconv.Itoa(n))
		return template.URL(path + "?" + v.Encode())
	}

	current := min(max(p.Page, 1), p.TotalPages)
	if current > 1 {
		out.Prev = link(current - 1)
	}
	if current < p.TotalPages {
		out.Next = link(current + 1)
	}

	add := func(n int) {
		out.Links = append(out.Links, pageLink{Number: n, URL: link(n), Current: n == current})
	}
	lo := max(current-pagerWindow, 2)
	hi := min(current+pagerWindow, p.TotalPages-1)

	add(1)
	if lo > 2 {
		out.Links = append(out.Links, pageLink{Gap: true})
	}
	for n := lo; n <= hi; n++ {
		add(n)
	}
	if hi < p.TotalPages-1 {
		out.Links = append(out.Links, pageLink{Gap: true})
	}
	add(p.TotalPages)
	return out
}

func formatSlot(s string) string {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, validation.DateTimeLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("Mon, Jan 2 2006 at 3:04 PM")
		}
	}
	return s
}

func statusClass(status string) string {
	switch status {
	case apiclient.StatusPending:
		return "status-pending"
	case apiclient.StatusCompleted:
		return "status-completed"
	case apiclient.StatusCancelled:
		return "status-cancelled"
	default:
		return "status-unknown"
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
