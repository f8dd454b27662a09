// Package table is the crash-safe state store for a scan run. The input
// spreadsheet itself carries all progress: result columns are appended to the
// existing data and each row's analysis_status drives scheduling, so a killed
// run resumes from its last checkpoint with no side database.
package table

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tourscan/internal/detect"
)

// Row statuses. Pending rows persist as an empty analysis_status cell so an
// untouched spreadsheet is already a valid run state.
const (
	StatusPending    = ""
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
	StatusInvalidURL = "INVALID_URL"
)

// urlColumnPriority is tried in order to locate the website column.
var urlColumnPriority = []string{
	"Website URL", "website url", "url", "domain", "website",
	"company_url", "site", "Website", "URL", "Domain",
}

// resultColumns are appended to the sheet when absent.
var resultColumns = []string{
	"has_chatbot",
	"chatbot_types_detailed",
	"booking_technology_detailed",
	"ota_dependencies_detailed",
	"prospect_evaluation",
	"pages_analyzed",
	"analysis_confidence",
	"analysis_status",
	"last_analyzed",
}

const errMsgLimit = 100

// noneDetected fills detail columns that came back empty on a completed row.
const noneDetected = "None detected"

// Table holds the input sheet plus result columns, in memory, with the file
// on disk rewritten atomically at every checkpoint.
type Table struct {
	path   string
	xlsx   bool
	header []string
	rows   [][]string
	cols   map[string]int
	urlCol int
}

// Load reads a CSV or XLSX sheet, locates the URL column, appends any missing
// result columns, and recovers rows left IN_PROGRESS by a crashed run back to
// pending.
func Load(path string) (*Table, error) {
	isXLSX := strings.EqualFold(filepath.Ext(path), ".xlsx")

	var (
		header []string
		rows   [][]string
		err    error
	)
	if isXLSX {
		header, rows, err = readXLSX(path)
	} else {
		header, rows, err = readCSV(path)
	}
	if err != nil {
		return nil, err
	}
	if len(header) == 0 {
		return nil, eris.Errorf("table: %s has no header row", path)
	}

	t := &Table{path: path, xlsx: isXLSX, header: header, rows: rows}

	for _, col := range resultColumns {
		if indexOf(header, col) < 0 {
			t.header = append(t.header, col)
		}
	}
	t.cols = make(map[string]int, len(t.header))
	for i, name := range t.header {
		t.cols[name] = i
	}
	for i := range t.rows {
		t.rows[i] = pad(t.rows[i], len(t.header))
	}

	t.urlCol, err = resolveURLColumn(t.header)
	if err != nil {
		return nil, err
	}

	// A row stuck IN_PROGRESS means the previous run died mid-batch.
	for i := range t.rows {
		if t.Status(i) == StatusInProgress {
			t.setCell(i, "analysis_status", StatusPending)
		}
	}

	return t, nil
}

func resolveURLColumn(header []string) (int, error) {
	for _, want := range urlColumnPriority {
		if i := indexOf(header, want); i >= 0 {
			return i, nil
		}
	}
	for _, want := range urlColumnPriority {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), want) {
				return i, nil
			}
		}
	}
	return 0, eris.Errorf("table: no URL column found (tried %s)", strings.Join(urlColumnPriority, ", "))
}

func indexOf(ss []string, want string) int {
	for i, s := range ss {
		if s == want {
			return i
		}
	}
	return -1
}

func pad(row []string, width int) []string {
	for len(row) < width {
		row = append(row, "")
	}
	return row
}

// Path returns the sheet's on-disk location.
func (t *Table) Path() string { return t.path }

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// URL returns the raw website cell for a row.
func (t *Table) URL(i int) string { return strings.TrimSpace(t.rows[i][t.urlCol]) }

// Status returns a row's analysis status.
func (t *Table) Status(i int) string {
	return strings.TrimSpace(t.rows[i][t.cols["analysis_status"]])
}

func (t *Table) setCell(i int, col, val string) {
	t.rows[i][t.cols[col]] = val
}

// Pool returns up to limit pending row indices.
func (t *Table) Pool(limit int) []int {
	var pool []int
	for i := range t.rows {
		if t.Status(i) != StatusPending {
			continue
		}
		pool = append(pool, i)
		if limit > 0 && len(pool) >= limit {
			break
		}
	}
	return pool
}

// PendingCount returns how many rows are still pending.
func (t *Table) PendingCount() int {
	n := 0
	for i := range t.rows {
		if t.Status(i) == StatusPending {
			n++
		}
	}
	return n
}

// ResetFailed flips FAILED rows back to pending so the next phase can retry
// them. This is the only sanctioned terminal-to-pending transition.
func (t *Table) ResetFailed() int {
	n := 0
	for i := range t.rows {
		if t.Status(i) == StatusFailed {
			t.setCell(i, "analysis_status", StatusPending)
			n++
		}
	}
	return n
}

// MarkFailed returns a pending row to FAILED without touching its recorded
// error. Used when a run ends before a reset row could be re-attempted, so
// the row keeps a terminal status instead of a dangling pending one.
func (t *Table) MarkFailed(i int) {
	if t.Status(i) == StatusPending {
		t.setCell(i, "analysis_status", StatusFailed)
	}
}

// MarkInProgress claims a pending row for the current batch.
func (t *Table) MarkInProgress(i int) {
	if t.Status(i) == StatusPending {
		t.setCell(i, "analysis_status", StatusInProgress)
	}
}

// Outcome is the result of analyzing one row.
type Outcome struct {
	Status     string
	Err        string
	Result     *detect.Result
	Prospect   string
	Confidence string
}

// SetOutcome writes a row's analysis outcome. COMPLETED and INVALID_URL are
// terminal: a later write against them is dropped and reported false.
func (t *Table) SetOutcome(i int, oc Outcome) bool {
	switch t.Status(i) {
	case StatusCompleted, StatusInvalidURL:
		return false
	}

	t.setCell(i, "analysis_status", oc.Status)
	t.setCell(i, "last_analyzed", time.Now().UTC().Format("2006-01-02 15:04:05"))

	switch oc.Status {
	case StatusCompleted:
		r := oc.Result
		t.setCell(i, "has_chatbot", yesNo(r.HasChatbot))
		t.setCell(i, "chatbot_types_detailed", joinOrNone(r.ChatbotTypes))
		t.setCell(i, "booking_technology_detailed", joinOrNone(r.BookingTech))
		t.setCell(i, "ota_dependencies_detailed", joinOrNone(r.OTADependencies))
		t.setCell(i, "prospect_evaluation", oc.Prospect)
		t.setCell(i, "pages_analyzed", strconv.Itoa(r.PagesAnalyzed))
		t.setCell(i, "analysis_confidence", oc.Confidence)
	case StatusFailed, StatusInvalidURL:
		t.setCell(i, "has_chatbot", truncateErr(oc.Err))
		t.setCell(i, "pages_analyzed", "0")
	}
	return true
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func joinOrNone(s detect.TagSet) string {
	if len(s) == 0 {
		return noneDetected
	}
	return s.Join("; ")
}

// truncateErr keeps error text short enough to stay readable in a cell.
func truncateErr(msg string) string {
	msg = strings.ReplaceAll(msg, "\n", " ")
	if len(msg) > errMsgLimit {
		return msg[:errMsgLimit]
	}
	return msg
}

// Counts tallies rows by status, keying pending rows as "PENDING".
func (t *Table) Counts() map[string]int {
	counts := make(map[string]int)
	for i := range t.rows {
		st := t.Status(i)
		if st == StatusPending {
			st = "PENDING"
		}
		counts[st]++
	}
	return counts
}

// Backup writes a timestamped snapshot alongside the sheet and returns its
// path.
func (t *Table) Backup() (string, error) {
	ext := filepath.Ext(t.path)
	base := strings.TrimSuffix(t.path, ext)
	path := fmt.Sprintf("%s_backup_%s%s", base, time.Now().UTC().Format("20060102_150405"), ext)
	if err := t.writeTo(path); err != nil {
		return "", eris.Wrap(err, "table: backup")
	}
	return path, nil
}
