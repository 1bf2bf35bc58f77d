package payroll

import (
	"strings"
	"testing"
)

func TestStripTags(t *testing.T) {
	in := "<ul><b>Teacher:</b> Jane Doe<br>@janedoe</br><span>x</span></ul><ol>y</ol>"
	got := StripTags(in)

	if strings.ContainsAny(got, "<>") {
		t.Fatalf("Expected no residual tags, got %q", got)
	}
	want := "Teacher: Jane Doe @janedoe xy"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestStripTags_LeavesUnknownTags(t *testing.T) {
	got := StripTags("<i>Teacher:</i> Jane")
	if got != "<i>Teacher:</i> Jane" {
		t.Errorf("Expected unsupported tags to be left alone, got %q", got)
	}
}

func TestParseDescription_MainOnly(t *testing.T) {
	result := ParseDescription("Teacher: Jane Doe @janedoe", "Robotics L3")
	if !result.Parsed() {
		t.Fatalf("Expected description to parse, got reason %q", result.Reason)
	}

	a := result.Assignment
	if a.TeacherName != "Jane Doe" {
		t.Errorf("Expected TeacherName to be 'Jane Doe', got '%s'", a.TeacherName)
	}
	if a.TeacherHandle != "@janedoe" {
		t.Errorf("Expected TeacherHandle to be '@janedoe', got '%s'", a.TeacherHandle)
	}
	if a.Role != RoleMain {
		t.Errorf("Expected role main, got %s", a.Role)
	}
	if a.Shadow != nil || a.Replaces != nil {
		t.Errorf("Expected no secondary person, got shadow=%v replaces=%v", a.Shadow, a.Replaces)
	}
	if a.Postponed {
		t.Error("Expected event not to be postponed")
	}
}

func TestParseDescription_Clauses(t *testing.T) {
	tests := []struct {
		name        string
		description string
		wantHandle  string
		wantName    string
		wantRole    Role
		wantShadow  string
		wantReplace string
	}{
		{
			name:        "shadowing",
			description: "Teacher: Jane Doe @janedoe (John Tan @johntan shadowing)",
			wantHandle:  "@janedoe",
			wantName:    "Jane Doe",
			wantRole:    RoleMain,
			wantShadow:  "@johntan",
		},
		{
			name:        "substitute",
			description: "Teacher: Jane Doe @janedoe (John Tan @johntan substitute)",
			wantHandle:  "@johntan",
			wantName:    "John Tan",
			wantRole:    RoleSubstitute,
			wantReplace: "@janedoe",
		},
		{
			name:        "substituting",
			description: "Teacher: Jane Doe @janedoe (John Tan @johntan substituting)",
			wantHandle:  "@johntan",
			wantName:    "John Tan",
			wantRole:    RoleSubstitute,
			wantReplace: "@janedoe",
		},
		{
			name:        "capitalised keyword",
			description: "Teacher: Jane Doe @janedoe (John Tan @johntan Shadowing)",
			wantHandle:  "@janedoe",
			wantName:    "Jane Doe",
			wantRole:    RoleMain,
			wantShadow:  "@johntan",
		},
		{
			name:        "tags around the clause",
			description: "<b>Teacher:</b> Jane Doe @janedoe<br>(John Tan @johntan substitute)<br>Bring kits",
			wantHandle:  "@johntan",
			wantName:    "John Tan",
			wantRole:    RoleSubstitute,
			wantReplace: "@janedoe",
		},
		{
			name:        "unknown keyword is ignored",
			description: "Teacher: Jane Doe @janedoe (John Tan @johntan observing)",
			wantHandle:  "@janedoe",
			wantName:    "Jane Doe",
			wantRole:    RoleMain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseDescription(tt.description, "Coding L1")
			if !result.Parsed() {
				t.Fatalf("Expected description to parse, got reason %q", result.Reason)
			}
			a := result.Assignment
			if a.TeacherHandle != tt.wantHandle {
				t.Errorf("Expected TeacherHandle to be '%s', got '%s'", tt.wantHandle, a.TeacherHandle)
			}
			if a.TeacherName != tt.wantName {
				t.Errorf("Expected TeacherName to be '%s', got '%s'", tt.wantName, a.TeacherName)
			}
			if a.Role != tt.wantRole {
				t.Errorf("Expected role %s, got %s", tt.wantRole, a.Role)
			}

			gotShadow := ""
			if a.Shadow != nil {
				gotShadow = a.Shadow.Handle
			}
			if gotShadow != tt.wantShadow {
				t.Errorf("Expected shadow '%s', got '%s'", tt.wantShadow, gotShadow)
			}

			gotReplace := ""
			if a.Replaces != nil {
				gotReplace = a.Replaces.Handle
			}
			if gotReplace != tt.wantReplace {
				t.Errorf("Expected replaced teacher '%s', got '%s'", tt.wantReplace, gotReplace)
			}
		})
	}
}

func TestParseDescription_Unparsed(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        SkipReason
	}{
		{"empty", "", SkipNoTeacherLabel},
		{"no label", "Jane Doe @janedoe", SkipNoTeacherLabel},
		{"label without handle", "Teacher: Jane Doe", SkipNoTeacherHandle},
		{"handle on another line", "Teacher: Jane Doe\nContact @janedoe", SkipNoTeacherHandle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseDescription(tt.description, "Coding L1")
			if result.Parsed() {
				t.Fatalf("Expected description not to parse, got %+v", result.Assignment)
			}
			if result.Reason != tt.want {
				t.Errorf("Expected reason %q, got %q", tt.want, result.Reason)
			}
		})
	}
}

func TestParseDescription_Postponed(t *testing.T) {
	for _, title := range []string{"Robotics L3 [POSTPONED]", "[POSTPONED] Robotics L3", "Robotics POSTPONED"} {
		result := ParseDescription("Teacher: Jane Doe @janedoe", title)
		if !result.Assignment.Postponed {
			t.Errorf("Expected %q to be postponed", title)
		}
		if result.Assignment.TeacherHandle != "@janedoe" {
			t.Errorf("Expected person of record to stay '@janedoe', got '%s'", result.Assignment.TeacherHandle)
		}
	}

	if IsPostponed("Robotics L3 [postponed]") {
		t.Error("Expected POSTPONED detection to be case-sensitive")
	}
}

func TestDisplayTeacher(t *testing.T) {
	tests := []struct {
		description string
		want        string
	}{
		{"Teacher: Jane Doe @janedoe", "Jane Doe @janedoe"},
		{"<b>Teacher:</b>  Jane Doe", "Jane Doe"},
		{"Module 3\nTeacher: Jane\nRoom 2", "Jane"},
		{"No teacher yet", ""},
	}
	for _, tt := range tests {
		if got := DisplayTeacher(tt.description); got != tt.want {
			t.Errorf("DisplayTeacher(%q) = %q, want %q", tt.description, got, tt.want)
		}
	}
}
