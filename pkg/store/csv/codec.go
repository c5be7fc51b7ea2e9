package csv

import (
	"bytes"
	stdcsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/de-tools/flowlog-atlas/pkg/models/domain"
)

var (
	ErrEmptyFile      = errors.New("csv file is empty")
	ErrNoDelimiter    = errors.New("no delimiter found in csv header")
	ErrMissingColumns = errors.New("csv file is missing required columns")
)

const (
	ColName               = "Name"
	ColSubscriptionName   = "SubscriptionName"
	ColLocation           = "Location"
	ColResourceGroup      = "ResourceGroup"
	ColTargetResourceName = "TargetResourceName"
	ColTargetResourceType = "TargetResourceType"
	ColStatus             = "Status"
	ColTAInterval         = "TAInterval"
)

var baseColumns = []string{
	ColName,
	ColSubscriptionName,
	ColLocation,
	ColResourceGroup,
	ColTargetResourceName,
	ColTargetResourceType,
	ColStatus,
}

// Schema selects between the single-subscription layout and the richer
// multi-subscription layout that also carries the analytics interval.
type Schema int

const (
	SchemaSingle Schema = iota
	SchemaMulti
)

func (s Schema) Columns() []string {
	cols := append([]string(nil), baseColumns...)
	if s == SchemaMulti {
		cols = append(cols, ColTAInterval)
	}
	return cols
}

func (s Schema) String() string {
	if s == SchemaMulti {
		return "multi-subscription"
	}
	return "single-subscription"
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Write serializes records with a comma delimiter and the exact header of
// the schema.
func Write(w io.Writer, schema Schema, records []domain.FlowLogRecord) error {
	cw := stdcsv.NewWriter(w)
	if err := cw.Write(schema.Columns()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.Name,
			r.SubscriptionName,
			r.Location,
			r.ResourceGroup,
			r.TargetResourceName,
			string(r.TargetResourceType),
			string(r.Status),
		}
		if schema == SchemaMulti {
			row = append(row, r.TAInterval.String())
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write record %s: %w", r.Name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteFile(path string, schema Schema, records []domain.FlowLogRecord) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return Write(f, schema, records)
}

func ReadFile(path string, schema Schema) ([]domain.FlowLogRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	records, err := Read(f, schema)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// DetectDelimiter returns the first comma or semicolon found in line.
func DetectDelimiter(line string) (rune, error) {
	i := strings.IndexAny(line, ",;")
	if i < 0 {
		return 0, fmt.Errorf("%w: expected ',' or ';' in %q", ErrNoDelimiter, line)
	}
	return rune(line[i]), nil
}

// Read parses desired-state records. The header is validated against the
// schema before any row is looked at.
func Read(r io.Reader, schema Schema) ([]domain.FlowLogRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	firstLine, _, _ := strings.Cut(string(data), "\n")
	delimiter, err := DetectDelimiter(firstLine)
	if err != nil {
		return nil, err
	}

	cr := stdcsv.NewReader(bytes.NewReader(data))
	cr.Comma = delimiter
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index, err := columnIndex(header, schema)
	if err != nil {
		return nil, err
	}

	var records []domain.FlowLogRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}

		record, err := parseRow(row, index, schema)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func columnIndex(header []string, schema Schema) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}

	var missing []string
	for _, col := range schema.Columns() {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w %s; expected columns: %s",
			ErrMissingColumns, strings.Join(missing, ", "), strings.Join(schema.Columns(), ", "))
	}
	return index, nil
}

func parseRow(row []string, index map[string]int, schema Schema) (domain.FlowLogRecord, error) {
	field := func(col string) string {
		return strings.TrimSpace(row[index[col]])
	}

	record := domain.FlowLogRecord{
		Name:               field(ColName),
		SubscriptionName:   field(ColSubscriptionName),
		Location:           strings.ToLower(field(ColLocation)),
		ResourceGroup:      field(ColResourceGroup),
		TargetResourceName: field(ColTargetResourceName),
		TargetResourceType: parseTargetType(field(ColTargetResourceType)),
		Status:             parseStatus(field(ColStatus)),
	}
	if record.Name == "" {
		return domain.FlowLogRecord{}, fmt.Errorf("empty %s", ColName)
	}

	if schema == SchemaMulti {
		interval, err := domain.ParseInterval(field(ColTAInterval))
		if err != nil {
			return domain.FlowLogRecord{}, fmt.Errorf("flow log %s: %w", record.Name, err)
		}
		record.TAInterval = interval
	}
	return record, nil
}

// parseStatus canonicalizes known values case-insensitively and keeps
// anything else verbatim so the reconciler can reject it by name.
func parseStatus(raw string) domain.Status {
	for _, s := range []domain.Status{
		domain.StatusEnabled, domain.StatusDisabled, domain.StatusDeleted, domain.StatusUpdated,
	} {
		if strings.EqualFold(raw, string(s)) {
			return s
		}
	}
	return domain.Status(raw)
}

func parseTargetType(raw string) domain.TargetType {
	for _, t := range []domain.TargetType{
		domain.TargetNIC, domain.TargetSubnet, domain.TargetVNet, domain.TargetNSG,
	} {
		if strings.EqualFold(raw, string(t)) {
			return t
		}
	}
	return domain.TargetUnknown
}
