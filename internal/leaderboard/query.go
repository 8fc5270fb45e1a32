// Package leaderboard builds and runs the paymaster activity aggregations.
package leaderboard

import (
	"fmt"
	"sort"
	"strings"
)

const (
	// ZeroPaymaster is the sentinel for "no sponsor"; operations carrying it
	// are excluded from every aggregate.
	ZeroPaymaster = "0x0000000000000000000000000000000000000000"

	// DefaultLogoURL is substituted when an app has no metadata row.
	DefaultLogoURL = "https://tspekraxapsoevhxjafh.supabase.co/storage/v1/object/public/logos//other.png"

	userOpsTable  = "ERC4337_ALL_USEROPS"
	labelsTable   = "ERC4337_LABELS_APPS"
	metadataTable = "ERC4337_LABELS_APP_METADATA"
)

// WindowSet is the ordered list of trailing windows, in days. Primary names
// the window whose active-account count orders the final row set.
type WindowSet struct {
	Days    []int
	Primary int
}

func DefaultWindows() WindowSet {
	return WindowSet{Days: []int{7, 30, 90}, Primary: 30}
}

func (ws WindowSet) Validate() error {
	if len(ws.Days) == 0 {
		return fmt.Errorf("window set is empty")
	}
	if !sort.IntsAreSorted(ws.Days) {
		return fmt.Errorf("windows must be ascending: %v", ws.Days)
	}
	primaryOK := false
	seen := map[int]bool{}
	for _, d := range ws.Days {
		if d <= 0 {
			return fmt.Errorf("window must be positive, got %d", d)
		}
		if seen[d] {
			return fmt.Errorf("duplicate window %d", d)
		}
		seen[d] = true
		if d == ws.Primary {
			primaryOK = true
		}
	}
	if !primaryOK {
		return fmt.Errorf("primary window %d not in %v", ws.Primary, ws.Days)
	}
	return nil
}

// Max returns the widest window; it bounds the fact-table scan.
func (ws WindowSet) Max() int { return ws.Days[len(ws.Days)-1] }

// QueryBuilder produces the warehouse SQL for the leaderboard and totals.
// All windows are computed in one pass over the joined row set; the join is
// the expensive part, per-window aggregates are conditional sums on top.
type QueryBuilder struct {
	database string
	schema   string
	windows  WindowSet
}

func NewQueryBuilder(database, schema string, ws WindowSet) (*QueryBuilder, error) {
	if err := ws.Validate(); err != nil {
		return nil, fmt.Errorf("window set: %w", err)
	}
	if database == "" || schema == "" {
		return nil, fmt.Errorf("database and schema are required")
	}
	return &QueryBuilder{database: database, schema: schema, windows: ws}, nil
}

func (b *QueryBuilder) Windows() WindowSet { return b.windows }

func (b *QueryBuilder) table(name string) string {
	return fmt.Sprintf("%s.%s.%s", b.database, b.schema, name)
}

// inWindow is the conditional-aggregation predicate for one trailing window.
// "Now" is CURRENT_DATE at the warehouse, evaluated once per execution.
func inWindow(days int) string {
	return fmt.Sprintf("u.BLOCK_TIME > CURRENT_DATE - INTERVAL '%d days'", days)
}

// LeaderboardSQL returns the one-pass multi-window ranking query. Ranking
// within each window is by distinct active senders descending; ties break on
// project name ascending so results are reproducible across executions.
func (b *QueryBuilder) LeaderboardSQL() string {
	var sb strings.Builder

	sb.WriteString("SELECT\n")
	sb.WriteString("    COALESCE(l.NAME, u.CALLED_CONTRACT) AS PROJECT,\n")
	fmt.Fprintf(&sb, "    COALESCE(m.LOGO, '%s') AS LOGO,\n", DefaultLogoURL)
	sb.WriteString("    m.WEBSITE,\n")
	sb.WriteString("    m.CATEGORY")

	for _, d := range b.windows.Days {
		cond := inWindow(d)
		sb.WriteString(",\n\n")
		fmt.Fprintf(&sb,
			"    SUM(CASE WHEN %s THEN COALESCE(u.ACTUALGASCOST_USD, 0) ELSE 0 END) AS PAYMASTER_VOLUME_%dD,\n",
			cond, d)
		fmt.Fprintf(&sb,
			"    COUNT(DISTINCT CASE WHEN %s THEN u.SENDER END) AS ACTIVE_ACCOUNTS_%dD,\n",
			cond, d)
		fmt.Fprintf(&sb,
			"    COUNT(CASE WHEN %s THEN u.OP_HASH END) AS GASLESS_TXNS_%dD,\n",
			cond, d)
		fmt.Fprintf(&sb,
			"    ROW_NUMBER() OVER(ORDER BY COUNT(DISTINCT CASE WHEN %s THEN u.SENDER END) DESC, COALESCE(l.NAME, u.CALLED_CONTRACT) ASC) AS RN_%dD",
			cond, d)
	}

	sb.WriteString("\n")
	fmt.Fprintf(&sb, "FROM %s u\n", b.table(userOpsTable))
	fmt.Fprintf(&sb, "INNER JOIN %s l\n", b.table(labelsTable))
	sb.WriteString("    ON u.CALLED_CONTRACT = l.ADDRESS\n")
	sb.WriteString("    AND l.CATEGORY != 'factory'\n")
	fmt.Fprintf(&sb, "LEFT JOIN %s m\n", b.table(metadataTable))
	sb.WriteString("    ON m.NAME = l.NAME\n")
	fmt.Fprintf(&sb, "WHERE %s\n", inWindow(b.windows.Max()))
	sb.WriteString("    AND u.BLOCK_TIME < CURRENT_DATE\n")
	fmt.Fprintf(&sb, "    AND u.PAYMASTER != '%s'\n", ZeroPaymaster)
	sb.WriteString("GROUP BY 1,2,3,4\n")
	fmt.Fprintf(&sb, "ORDER BY ACTIVE_ACCOUNTS_%dD DESC, PROJECT ASC", b.windows.Primary)

	return sb.String()
}

// TotalsSQL returns the all-time totals query: operation count and USD volume
// across every sponsored operation, no window, no joins.
func (b *QueryBuilder) TotalsSQL() string {
	var sb strings.Builder
	sb.WriteString("SELECT\n")
	sb.WriteString("    COUNT(OP_HASH) AS GASLESS_TXNS,\n")
	sb.WriteString("    SUM(COALESCE(ACTUALGASCOST_USD, 0)) AS PAYMASTER_VOLUME\n")
	fmt.Fprintf(&sb, "FROM %s\n", b.table(userOpsTable))
	fmt.Fprintf(&sb, "WHERE PAYMASTER != '%s'", ZeroPaymaster)
	return sb.String()
}
