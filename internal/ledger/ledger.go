// Package ledger implements the append-only attendance file.
//
// Each line is "IDENTITY,DD/MM/YYYY HH:MM:SS". Lines are never rewritten;
// lines that fail to parse are ignored when deciding eligibility.
//
// There is no file locking: two processes sharing a ledger can race between
// the scan and the append.
package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
)

// TimeLayout is the on-disk timestamp format (DD/MM/YYYY HH:MM:SS).
const TimeLayout = "02/01/2006 15:04:05"

// DefaultMinInterval is the minimum gap between two records of the same identity.
const DefaultMinInterval = time.Minute

// Record is one parsed ledger line.
type Record struct {
	Name string
	Time time.Time
}

// Ledger is a file-backed attendance log.
type Ledger struct {
	path        string
	minInterval time.Duration
	loc         *time.Location
}

// New returns a ledger stored at path. The file is created on first write.
func New(path string, minInterval time.Duration) *Ledger {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Ledger{path: path, minInterval: minInterval, loc: time.Local}
}

// WithLocation sets the zone used to read and write timestamps. Defaults to time.Local.
func (l *Ledger) WithLocation(loc *time.Location) *Ledger {
	l.loc = loc
	return l
}

// Path returns the ledger file path.
func (l *Ledger) Path() string { return l.path }

// MinInterval returns the minimum gap enforced between records of one identity.
func (l *Ledger) MinInterval() time.Duration { return l.minInterval }

// Canonical is the form identities are compared and written in.
func Canonical(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// TryRecord appends a record for name at now if the identity is eligible.
// It returns false without writing when the last record for name is less
// than the minimum interval before now.
func (l *Ledger) TryRecord(name string, now time.Time) (bool, error) {
	key := Canonical(name)
	if key == "" {
		return false, errors.New("empty identity name")
	}
	if strings.ContainsAny(key, ",\r\n") {
		return false, fmt.Errorf("identity name %q contains a field or line separator", name)
	}

	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return false, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	records, endsWithNewline, err := l.scan(f)
	if err != nil {
		return false, fmt.Errorf("read ledger: %w", err)
	}

	if last, ok := latest(records)[key]; ok && now.Sub(last) < l.minInterval {
		return false, nil
	}

	line := fmt.Sprintf("%s,%s\n", key, now.In(l.loc).Format(TimeLayout))
	if !endsWithNewline {
		line = "\n" + line
	}
	if _, err := f.WriteString(line); err != nil {
		return false, fmt.Errorf("append ledger: %w", err)
	}
	return true, nil
}

// Records returns every parseable record in file order.
// A missing ledger is an empty ledger.
func (l *Ledger) Records() ([]Record, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	records, _, err := l.scan(f)
	return records, err
}

// Summary is the per-identity view of the ledger.
type Summary struct {
	Name  string
	Count int
	Last  time.Time
}

// Summaries groups records by identity, sorted by name.
func (l *Ledger) Summaries() ([]Summary, error) {
	records, err := l.Records()
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*Summary)
	for _, r := range records {
		s, ok := byName[r.Name]
		if !ok {
			s = &Summary{Name: r.Name}
			byName[r.Name] = s
		}
		s.Count++
		if r.Time.After(s.Last) {
			s.Last = r.Time
		}
	}

	out := make([]Summary, 0, len(byName))
	for _, s := range byName {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// scan reads every line from r. It also reports whether the content ends in a
// newline (true for empty content) so an append never joins two lines.
func (l *Ledger) scan(r io.Reader) ([]Record, bool, error) {
	var records []Record
	endsWithNewline := true

	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			endsWithNewline = strings.HasSuffix(line, "\n")
			if rec, ok := l.parseLine(line); ok {
				records = append(records, rec)
			}
		}
		if err == io.EOF {
			return records, endsWithNewline, nil
		}
		if err != nil {
			return nil, false, err
		}
	}
}

func (l *Ledger) parseLine(line string) (Record, bool) {
	parts := strings.Split(line, ",")
	if len(parts) < 2 {
		return Record{}, false
	}
	name := Canonical(parts[0])
	ts, err := time.ParseInLocation(TimeLayout, strings.TrimSpace(parts[1]), l.loc)
	if name == "" || err != nil {
		return Record{}, false
	}
	return Record{Name: name, Time: ts}, true
}

func latest(records []Record) map[string]time.Time {
	last := make(map[string]time.Time, len(records))
	for _, r := range records {
		if cur, ok := last[r.Name]; !ok || r.Time.After(cur) {
			last[r.Name] = r.Time
		}
	}
	return last
}
