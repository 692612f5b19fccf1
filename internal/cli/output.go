package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Println(string(data))
	} else {
		fmt.Println(msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case AuthResult:
		o.printAuthResult(v)
	case Me:
		o.printMe(v)
	case Member:
		o.printMember(v)
	case MemberList:
		o.printMemberList(v)
	case Slot:
		o.printSlot(v)
	case SessionList:
		o.printSessionList(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// AuthResult response type (matches API)
type AuthResult struct {
	Username     string `json:"username"`
	SessionToken string `json:"session_token"`
}

// Me response type
type Me struct {
	Username        string   `json:"username"`
	Anonymous       bool     `json:"anonymous,omitempty"`
	Permissions     []string `json:"permissions"`
	PermissionGroup int      `json:"permission_group"`
}

// Member response type
type Member struct {
	ID              string   `json:"id"`
	Username        string   `json:"username"`
	Unfilled        bool     `json:"unfilled,omitempty"`
	Permissions     []string `json:"permissions,omitempty"`
	PermissionGroup *int     `json:"permission_group,omitempty"`
}

// MemberList response type
type MemberList struct {
	Members []Member `json:"members"`
}

// Slot response type
type Slot struct {
	SlotID   string `json:"slot_id"`
	TempName string `json:"temp_name"`
}

// Session response type
type Session struct {
	Token       string    `json:"token"`
	CreatedAt   time.Time `json:"created_at"`
	DeviceLabel string    `json:"device_label,omitempty"`
}

// SessionList response type
type SessionList struct {
	Sessions []Session `json:"sessions"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printAuthResult(a AuthResult) {
	fmt.Printf("Logged in as: %s\n", a.Username)
	fmt.Printf("Token: %s\n", a.SessionToken)
}

func (o *Output) printMe(m Me) {
	fmt.Printf("Username: %s\n", m.Username)
	if m.Anonymous {
		fmt.Println("Anonymous: yes")
	}
	fmt.Printf("Group: %d\n", m.PermissionGroup)
	fmt.Printf("Permissions: %s\n", permissionsString(m.Permissions))
}

func (o *Output) printMember(m Member) {
	status := ""
	if m.Unfilled {
		status = " [invited]"
	}
	fmt.Printf("Member: %s (%s)%s\n", m.Username, m.ID, status)
	if m.PermissionGroup != nil {
		fmt.Printf("Group: %d\n", *m.PermissionGroup)
		fmt.Printf("Permissions: %s\n", permissionsString(m.Permissions))
	}
}

func (o *Output) printMemberList(l MemberList) {
	fmt.Printf("Members (%d):\n", len(l.Members))
	for _, m := range l.Members {
		status := ""
		if m.Unfilled {
			status = " [invited]"
		}
		if m.PermissionGroup != nil {
			fmt.Printf("  - %s%s - group %d - %s\n",
				m.Username, status, *m.PermissionGroup, permissionsString(m.Permissions))
		} else {
			fmt.Printf("  - %s%s\n", m.Username, status)
		}
	}
}

func (o *Output) printSlot(s Slot) {
	fmt.Printf("Slot: %s\n", s.SlotID)
	fmt.Printf("Temp name: %s\n", s.TempName)
}

func (o *Output) printSessionList(l SessionList) {
	fmt.Printf("Sessions (%d):\n", len(l.Sessions))
	for _, s := range l.Sessions {
		label := s.DeviceLabel
		if label == "" {
			label = "unknown device"
		}
		fmt.Printf("  - %s - %s - %s\n", s.Token, label, s.CreatedAt.Format(time.RFC3339))
	}
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Printf("Status: %s\n", h.Status)
}

func permissionsString(names []string) string {
	if len(names) == 0 {
		return "NONE"
	}
	return strings.Join(names, "|")
}
