package mapping

// LastSyncedLayout matches the millisecond UTC timestamps the remote table stores.
const LastSyncedLayout = "2006-01-02T15:04:05.000Z"

// KeyColumn is the remote conflict key for every upsert and update.
const KeyColumn = "sl_number"

// Record is the canonical row shape sent to the remote table.
type Record struct {
	SLNumber                     string  `json:"sl_number"`
	ChecklistCategory            string  `json:"checklist_category"`
	OversightManager             string  `json:"oversight_manager"`
	ActionItem                   string  `json:"action_item"`
	ResponsiblePersonName        string  `json:"responsible_person_name"`
	ResponsiblePersonDesignation string  `json:"responsible_person_designation"`
	ResponsiblePersonEmail       string  `json:"responsible_person_email"`
	ReminderCCEmail              string  `json:"reminder_cc_email"`
	DueDate                      *string `json:"due_date"`
	ReminderDays                 string  `json:"reminder_days"`
	ReminderSent                 string  `json:"reminder_sent"`
	ReminderCount                int     `json:"reminder_count"`
	Status                       string  `json:"status"`
	Comments                     string  `json:"comments"`
	SheetSource                  string  `json:"sheet_source"`
	LastSynced                   string  `json:"last_synced"`
}

// Field describes one canonical column and the sheet headers that may feed it.
// Aliases are tried in order; the first present non-empty value wins.
type Field struct {
	Name    string
	Aliases []string
	Default string
}

// Fields is the alias table for every text column of Record. Due date and
// reminder count have their own coercion and are listed separately below.
var Fields = []Field{
	{Name: "sl_number", Aliases: []string{"S/L.", "SL", "SNo", "Sl No", "Serial"}},
	{Name: "checklist_category", Aliases: []string{"Checklist Category", "Category"}},
	{Name: "oversight_manager", Aliases: []string{"Oversight Manager", "Manager"}},
	{Name: "action_item", Aliases: []string{"Actionable Items", "Action Item", "Action"}},
	{Name: "responsible_person_name", Aliases: []string{"Responsible Person Name", "Responsible Person", "Person Name"}},
	{Name: "responsible_person_designation", Aliases: []string{"Responsible Person Designation", "Designation"}},
	{Name: "responsible_person_email", Aliases: []string{"Responsible Person Email", "Email"}},
	{Name: "reminder_cc_email", Aliases: []string{"Reminder Cc email", "CC Email"}},
	{Name: "reminder_days", Aliases: []string{"Reminder days before due date", "Reminder Days"}},
	{Name: "reminder_sent", Aliases: []string{"Reminder Sent?", "Reminder Sent"}, Default: "No"},
	{Name: "status", Aliases: []string{"Status"}, Default: "Not Done"},
	{Name: "comments", Aliases: []string{"Comments"}},
}

var (
	dueDateAliases       = []string{"Due Date"}
	reminderCountAliases = []string{"Reminder Count"}
)

// FieldByName returns the alias entry for a canonical column.
func FieldByName(name string) (Field, bool) {
	for _, f := range Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
