// Package google implements the ledger store against a real spreadsheet via
// the Sheets v4 API. Monthly tabs are named by their 3-letter codes; all
// writes go through values.batchUpdate so each phase is one round trip.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"racha/internal/core"
	"racha/internal/sheets"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	roster        core.Roster
}

var _ sheets.Store = (*Client)(nil)

// NewFromEnv creates a Sheets-backed store using service-account
// credentials. Required: GOOGLE_SPREADSHEET_ID. Credentials come from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context, roster core.Roster) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, roster: roster}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	inlineJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	credFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if inlineJSON == "" && credFile == "" {
		credFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case inlineJSON != "":
		credentialsJSON = []byte(inlineJSON)
	case credFile != "":
		b, err := os.ReadFile(credFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// mapRangeError converts the API's "unparseable range" answer for an absent
// tab into the store-level missing-partition error.
func mapRangeError(err error, month core.Month) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 400 && strings.Contains(apiErr.Message, "Unable to parse range") {
		return fmt.Errorf("%w: %s", sheets.ErrPartitionMissing, month.Code())
	}
	return err
}

// ReadSentinels implements sheets.SentinelReader by reading the date column
// of the partition's data rows.
func (c *Client) ReadSentinels(ctx context.Context, month core.Month) ([]string, error) {
	rng := sentinelRange(month)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, mapRangeError(fmt.Errorf("read %s: %w", rng, err), month)
	}
	out := make([]string, core.PartitionCapacity)
	for i := 0; i < core.PartitionCapacity && i < len(resp.Values); i++ {
		if len(resp.Values[i]) > 0 {
			out[i] = strings.TrimSpace(fmt.Sprint(resp.Values[i][0]))
		}
	}
	return out, nil
}

// WritePending implements the first phase: record fields plus a zero
// placeholder in the amount column.
func (c *Client) WritePending(ctx context.Context, month core.Month, row int, records []core.PurchaseRecord) error {
	data := make([]*gsheet.ValueRange, 0, 2*len(records))
	for i, rec := range records {
		r := row + i
		data = append(data,
			&gsheet.ValueRange{
				Range:  fieldsRange(month, r),
				Values: [][]any{{rec.Date.Format(), rec.Description, rec.Payer}},
			},
			&gsheet.ValueRange{
				Range:  amountRange(month, r),
				Values: [][]any{{0}},
			},
		)
	}
	return c.batchUpdate(ctx, month, data)
}

// MarkDebtors implements the flag phase: the flag block is rewritten whole
// (blank cells clear stale flags) and the count column gets a COUNTIF over
// the row's flag range.
func (c *Client) MarkDebtors(ctx context.Context, month core.Month, row int, marks []core.DebtorMarks) error {
	data := make([]*gsheet.ValueRange, 0, 2*len(marks))
	for i, m := range marks {
		r := row + i
		cells := make([]any, len(m.Flags))
		for j, f := range m.Flags {
			cells[j] = f
		}
		data = append(data,
			&gsheet.ValueRange{
				Range:  flagsRange(month, r),
				Values: [][]any{cells},
			},
			&gsheet.ValueRange{
				Range:  countRange(month, r),
				Values: [][]any{{countFormula(r)}},
			},
		)
	}
	return c.batchUpdate(ctx, month, data)
}

// CommitAmounts implements the final phase.
func (c *Client) CommitAmounts(ctx context.Context, month core.Month, row int, amounts []core.Money) error {
	data := make([]*gsheet.ValueRange, 0, len(amounts))
	for i, a := range amounts {
		data = append(data, &gsheet.ValueRange{
			Range:  amountRange(month, row+i),
			Values: [][]any{{a.Reais()}},
		})
	}
	return c.batchUpdate(ctx, month, data)
}

func (c *Client) batchUpdate(ctx context.Context, month core.Month, data []*gsheet.ValueRange) error {
	req := &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data:             data,
	}
	_, err := c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return mapRangeError(fmt.Errorf("batch update %s: %w", month.Code(), err), month)
	}
	return nil
}

// ListRecords implements sheets.RecordLister by scanning the full data block.
func (c *Client) ListRecords(ctx context.Context, month core.Month) ([]core.PurchaseRecord, error) {
	rng := dataRange(month)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, mapRangeError(fmt.Errorf("read %s: %w", rng, err), month)
	}
	var out []core.PurchaseRecord
	for _, cells := range resp.Values {
		rec, ok := parseRow(c.roster, toStrings(cells))
		if !ok {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// ReadBalances implements sheets.SnapshotReader.
func (c *Client) ReadBalances(ctx context.Context, month core.Month) (map[string]core.Money, error) {
	return c.readSnapshotRow(ctx, month, balancesRange(month))
}

// ReadConsolidated implements sheets.SnapshotReader. The consolidated
// totals always live in the designated consolidation partition.
func (c *Client) ReadConsolidated(ctx context.Context) (map[string]core.Money, error) {
	return c.readSnapshotRow(ctx, core.ConsolidatedMonth, consolidatedRange())
}

func (c *Client) readSnapshotRow(ctx context.Context, month core.Month, rng string) (map[string]core.Money, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, mapRangeError(fmt.Errorf("read %s: %w", rng, err), month)
	}
	var cells []string
	if len(resp.Values) > 0 {
		cells = toStrings(resp.Values[0])
	}
	out := make(map[string]core.Money, len(c.roster))
	for i, p := range c.roster {
		var cents int64
		if i < len(cells) {
			cents = core.ParseCurrencyLenient(cells[i])
		}
		out[p.Code] = core.Money{Cents: cents}
	}
	return out, nil
}

// ClearPartition implements sheets.PartitionWiper. Headers stay; only the
// bounded data block is cleared.
func (c *Client) ClearPartition(ctx context.Context, month core.Month) (int, error) {
	sent, err := c.ReadSentinels(ctx, month)
	if err != nil {
		return 0, err
	}
	occupied := 0
	for _, s := range sent {
		if s != "" {
			occupied++
		}
	}
	rng := dataRange(month)
	_, err = c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return 0, mapRangeError(fmt.Errorf("clear %s: %w", rng, err), month)
	}
	slog.InfoContext(ctx, "Partition cleared", "month", month.Code(), "rows", occupied)
	return occupied, nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
