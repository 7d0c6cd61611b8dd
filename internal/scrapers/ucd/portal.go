package ucd

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Portal holds everything that couples the scraper to the portal's markup
// and navigation, fixing markup drift should only require changing these.
type Portal struct {
	BaseUrl     string `json:"base_url"`
	WelcomePage string `json:"welcome_page"`

	CookieButton string `json:"cookie_button"`
	LoginLink    string `json:"login_link"`
	UsernameBox  string `json:"username_box"`
	PasswordBox  string `json:"password_box"`
	LoginButton  string `json:"login_button"`
	// HomeUrlPattern matches the url of the menu shown after a successful login.
	HomeUrlPattern string `json:"home_url_pattern"`

	RegistrationLink string `json:"registration_link"`
	ResultsLink      string `json:"results_link"`
	SummaryTable     string `json:"summary_table"`
	// DetailMarker is contained (case-insensitive) in the urls of detail reports.
	DetailMarker string `json:"detail_marker"`

	StudentInfoTable  string `json:"student_info_table"`
	DegreeResultTable string `json:"degree_result_table"`
	StageTable        string `json:"stage_table"`
	CourseWorkTable   string `json:"course_work_table"`
}

func DefaultPortal() Portal {
	return Portal{
		BaseUrl:     "https://hub.ucd.ie/usis/",
		WelcomePage: "W_WEB_WELCOME_PAGE",

		CookieButton:   "accept all cookies",
		LoginLink:      "log in with ucd connect",
		UsernameBox:    "username",
		PasswordBox:    "password",
		LoginButton:    "login",
		HomeUrlPattern: `(?i)W_HU_MENU\.P_DISPLAY_MENU.*p_menu=SI-HOME`,

		RegistrationLink: `a[href*="W_HU_MENU.P_DISPLAY_MENU"][href*="p_menu=SI-REGISTRATION"]`,
		ResultsLink:      `a[href*="W_HU_REPORTING.P_DISPLAY_REPORT"][href*="p_report=RG160-1R"]`,
		SummaryTable:     "#RG160-1Q",
		DetailMarker:     "p_report=RG160-2R",

		StudentInfoTable:  `table[id="RG160-2"]`,
		DegreeResultTable: `table[id="RG160-2T"]`,
		StageTable:        "#RG160-5Q",
		CourseWorkTable:   "#RG160-20Q",
	}
}

func (p Portal) WelcomeUrl() string {
	return strings.TrimSuffix(p.BaseUrl, "/") + "/" + p.WelcomePage
}

// Validate checks the portal can be used, it compiles the home url pattern.
func (p Portal) Validate() (*regexp.Regexp, error) {
	if p.BaseUrl == "" {
		return nil, fmt.Errorf("portal base url is empty")
	}
	pattern, err := regexp.Compile(p.HomeUrlPattern)
	if err != nil {
		return nil, fmt.Errorf("compile home url pattern: %w", err)
	}
	return pattern, nil
}

// IsDetailUrl reports whether u points to a detail report.
func (p Portal) IsDetailUrl(u string) bool {
	return strings.Contains(strings.ToLower(u), strings.ToLower(p.DetailMarker))
}

// Timeouts bound every blocking step of a session.
type Timeouts struct {
	// Page bounds a navigation reaching its load state.
	Page time.Duration
	// Login bounds the redirect to the home menu after submitting credentials.
	Login time.Duration
	// Link bounds waiting for a navigation link to show up.
	Link time.Duration
	// Action bounds waiting for an element to become actionable.
	Action time.Duration
	// SummaryTable bounds the mandatory wait for the summary table.
	SummaryTable time.Duration
	// CourseWork bounds the best-effort wait for the course-work table.
	CourseWork time.Duration
	// Teardown bounds closing the browser.
	Teardown time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Page:         time.Second * 20,
		Login:        time.Second * 90,
		Link:         time.Second * 15,
		Action:       time.Second * 15,
		SummaryTable: time.Second * 15,
		CourseWork:   time.Second * 20,
		Teardown:     time.Second * 10,
	}
}
