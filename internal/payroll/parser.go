package payroll

import (
	"regexp"
	"strings"
)

// Role describes how a person is billed for a lesson.
type Role int

const (
	RoleMain Role = iota
	RoleSubstitute
	RoleShadow
)

func (r Role) String() string {
	switch r {
	case RoleSubstitute:
		return "substitute"
	case RoleShadow:
		return "shadow"
	default:
		return "main"
	}
}

// Person is a teacher named in an event description.
type Person struct {
	Name   string
	Handle string // includes the leading "@"
}

// Assignment is the billing information extracted from one event.
type Assignment struct {
	TeacherName   string
	TeacherHandle string
	Role          Role
	Postponed     bool

	// Shadow is the person shadowing the lesson, if any.
	Shadow *Person
	// Replaces is the rostered teacher when a substitute took the lesson.
	Replaces *Person
}

// SkipReason explains why an event contributes nothing to the payment report.
type SkipReason string

const (
	SkipNone            SkipReason = ""
	SkipNoTeacherLabel  SkipReason = "no teacher label"
	SkipNoTeacherHandle SkipReason = "no teacher handle"
	SkipAllDay          SkipReason = "all-day event"
	SkipInvalidTimes    SkipReason = "end time before start time"
	SkipUnreadable      SkipReason = "unreadable start or end time"
)

// ParseResult is either a parsed Assignment or the reason parsing failed.
type ParseResult struct {
	Assignment Assignment
	Reason     SkipReason
}

// Parsed reports whether the description yielded an assignment.
func (r ParseResult) Parsed() bool {
	return r.Reason == SkipNone
}

var (
	breakTagPattern  = regexp.MustCompile(`<[/]?br>`)
	formatTagPattern = regexp.MustCompile(`<[/]?(ul|ol|br|span|b)>`)

	teacherLinePattern = regexp.MustCompile(`Teacher:\s*(.*)`)
	assignmentPattern  = regexp.MustCompile(`Teacher:\s*([^@(\n]*?)\s*@(\w+)(?:\s*\(\s*([^@()\n]*?)\s*@(\w+)\s+(?i:(shadowing|substituting|substitute))\s*\))?`)
)

// StripTags removes the markup Google Calendar puts into descriptions.
// Line breaks become a single space so that adjacent words stay apart.
func StripTags(s string) string {
	s = breakTagPattern.ReplaceAllString(s, " ")
	return formatTagPattern.ReplaceAllString(s, "")
}

// IsPostponed reports whether an event title carries the POSTPONED marker.
func IsPostponed(title string) bool {
	return strings.Contains(title, "POSTPONED")
}

// DisplayTeacher returns whatever follows "Teacher:" on its line, or "".
// Schedule messages use it even for descriptions that ParseDescription rejects.
func DisplayTeacher(description string) string {
	match := teacherLinePattern.FindStringSubmatch(StripTags(description))
	if match == nil {
		return ""
	}
	return strings.TrimSpace(match[1])
}

// ParseDescription extracts the billed teacher from an event description.
//
// The expected form is "Teacher: Name @handle", optionally followed by
// "(Other Name @other shadowing)" or "(Other Name @other substitute)".
// A substitute replaces the rostered teacher as the billed person; a shadow
// is recorded alongside the main teacher.
func ParseDescription(description, title string) ParseResult {
	text := StripTags(description)
	if !strings.Contains(text, "Teacher:") {
		return ParseResult{Reason: SkipNoTeacherLabel}
	}

	match := assignmentPattern.FindStringSubmatch(text)
	if match == nil {
		return ParseResult{Reason: SkipNoTeacherHandle}
	}

	main := newPerson(match[1], match[2])
	assignment := Assignment{
		TeacherName:   main.Name,
		TeacherHandle: main.Handle,
		Role:          RoleMain,
		Postponed:     IsPostponed(title),
	}

	if match[4] != "" {
		other := newPerson(match[3], match[4])
		switch strings.ToLower(match[5]) {
		case "shadowing":
			assignment.Shadow = &other
		case "substitute", "substituting":
			assignment.TeacherName = other.Name
			assignment.TeacherHandle = other.Handle
			assignment.Role = RoleSubstitute
			assignment.Replaces = &main
		}
	}

	return ParseResult{Assignment: assignment}
}

func newPerson(name, handle string) Person {
	p := Person{
		Name:   strings.TrimSpace(name),
		Handle: "@" + handle,
	}
	if p.Name == "" {
		p.Name = p.Handle
	}
	return p
}
