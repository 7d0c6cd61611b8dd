package ucd

import (
	"fmt"
	"strings"
)

type Credentials struct {
	Username string
	Password string
}

// Validate returns credentials with surrounding whitespace removed, it fails
// with ErrInvalidCredentialsInput if either field is blank.
func (c Credentials) Validate() (Credentials, error) {
	out := Credentials{
		Username: strings.TrimSpace(c.Username),
		Password: strings.TrimSpace(c.Password),
	}
	if out.Username == "" || out.Password == "" {
		return Credentials{}, ErrInvalidCredentialsInput
	}
	return out, nil
}

// String never includes the password.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Username: %q}", c.Username)
}

// SummaryRow is one term/programme combination of the results summary report.
type SummaryRow struct {
	Term      string `json:"term"`
	Stage     string `json:"stage"`
	Year      string `json:"year"`
	Programme string `json:"programme"`
	Major     string `json:"major"`
	// ResultsURL is the absolute url of the detail report.
	ResultsURL string `json:"resultsUrl"`
}

type StudentInfo struct {
	Degree       string `json:"degree,omitempty"`
	Programme    string `json:"programme,omitempty"`
	SemesterGPA  string `json:"semesterGpa,omitempty"`
	DegreeResult string `json:"degreeResult,omitempty"`
}

// StageResult fields are kept as displayed, the portal mixes numbers and text
// in most of them.
type StageResult struct {
	Major            string `json:"major"`
	Stage            string `json:"stage"`
	Status           string `json:"status"`
	AttemptedCredits string `json:"attemptedCredits"`
	EarnedCredits    string `json:"earnedCredits"`
	StageGPA         string `json:"stageGpa"`
	Award            string `json:"award"`
	AwardDescription string `json:"awardDescription"`
	AwardGPA         string `json:"awardGpa"`
}

type CourseWorkRow struct {
	Semester string `json:"semester"`
	CRN      string `json:"crn"`
	// CRNURL is empty when the crn cell carries no link.
	CRNURL                string `json:"crnUrl"`
	Module                string `json:"module"`
	ModuleTitle           string `json:"moduleTitle"`
	Stage                 string `json:"stage"`
	Credits               string `json:"credits"`
	Grade                 string `json:"grade"`
	CompensationAvailable string `json:"compensationAvailable"`
}

type ResultDetail struct {
	StudentInfo  StudentInfo     `json:"studentInfo"`
	StageResults []StageResult   `json:"stageResults"`
	CourseWork   []CourseWorkRow `json:"courseWork"`
}

type AggregatedResult struct {
	Summary SummaryRow   `json:"summary"`
	Detail  ResultDetail `json:"detail"`
}
