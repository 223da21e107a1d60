package delivery

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/stealth-alerts/internal/aggregator"
	"github.com/stealth-alerts/internal/config"
	"github.com/stealth-alerts/internal/types"
)

// maxTableRows caps rendered table rows; the remainder is summarized.
const maxTableRows = 20

const tokenPageBaseURL = "https://www.candlestick.io/crypto/"

// BuildAlertMessage renders the full HTML alert for one matched token.
// traderURL maps a wallet address to its trader-scan link; nil disables
// wallet links regardless of the definition.
func BuildAlertMessage(def *config.AlertDefinition, agg *aggregator.TokenAggregate, traderURL func(string) string) string {
	sections := []string{
		alertHeader(def),
		tokenBlock(agg),
		activityBlock(def, agg, traderURL),
	}
	return strings.Join(sections, "\n\n")
}

// alertHeader renders the alert name and its firing conditions.
func alertHeader(def *config.AlertDefinition) string {
	conditions := []string{
		fmt.Sprintf("Buy ≥ $%s", formatValue(float64(def.Query.ValueFilter))),
		fmt.Sprintf("Wallet age ≤ %dD", def.Query.WalletAgeDays),
	}
	if def.Query.BoughtTokenLimit {
		conditions = append(conditions, "Tokens bought ≤ 2")
	}
	conditions = append(conditions,
		fmt.Sprintf("Distinct wallets ≥ %d", def.Filter.MinDistinctWallets),
		fmt.Sprintf("Past %d mins", def.Filter.WindowMinutes),
	)

	return fmt.Sprintf("<b><i>%s</i></b>\n<i>%s</i>", def.Name, strings.Join(conditions, ", "))
}

// tokenBlock renders token identity plus whatever enrichment landed. Fields
// that failed to enrich render as "unknown" rather than being dropped, so a
// reader can tell missing data from clean data.
func tokenBlock(agg *aggregator.TokenAggregate) string {
	symbol := strings.ToUpper(agg.TokenSymbol)

	title := fmt.Sprintf("🪙 <b>%s</b>", symbol)
	if agg.TokenName != "" {
		title = fmt.Sprintf("🪙 <b>%s</b> (%s)", symbol, agg.TokenName)
	}

	lines := []string{
		title,
		fmt.Sprintf("CA: <code>%s</code>", agg.TokenAddress),
		fmt.Sprintf("Age: %s", formatAge(agg.CreatedAt, time.Now())),
		fmt.Sprintf("Honeypot: %s", formatHoneypot(agg.Honeypot)),
		fmt.Sprintf("Security: %s", formatSecurity(agg.Security)),
	}
	return strings.Join(lines, "\n")
}

func activityBlock(def *config.AlertDefinition, agg *aggregator.TokenAggregate, traderURL func(string) string) string {
	symbol := strings.ToUpper(agg.TokenSymbol)
	tokenLink := fmt.Sprintf(`<a href="%s%s">View %s on candlestick.io</a>`, tokenPageBaseURL, agg.TokenAddress, symbol)

	parts := []string{
		fmt.Sprintf("Distinct wallets: %d", agg.WalletCount()),
		fmt.Sprintf("Total txn value: $%s", formatValue(agg.TotalValue)),
		tokenLink + "\n",
		transactionsTable(agg.Transactions),
	}

	if def.ShowWalletStats {
		parts = append(parts, walletsTable(agg))
	}
	if def.ShowWalletLinks && traderURL != nil {
		parts = append(parts, walletLinks(agg.WalletAddresses(), traderURL))
	}

	return strings.Join(parts, "\n")
}

func transactionsTable(txns []types.TransactionRecord) string {
	headers := []string{"Addr", "Src", "Price", "TxnVal", "Time"}
	align := []byte{'l', 'l', 'r', 'r', 'l'}

	count := len(txns)
	if count > maxTableRows {
		count = maxTableRows
	}

	rows := make([][]string, 0, count)
	for _, txn := range txns[:count] {
		rows = append(rows, []string{
			shortAddr(txn.WalletAddress),
			txn.FundingSource,
			formatPrice(txn.BuyPrice),
			formatValue(txn.Value),
			formatTime(txn.Time),
		})
	}

	table := renderTable(headers, rows, align) + remainderNote(len(txns), count)
	return "📈 <b>Transactions</b>\n<pre>" + table + "</pre>"
}

func walletsTable(agg *aggregator.TokenAggregate) string {
	headers := []string{"Addr", "Win Rate", "ROI", "Tokens"}
	align := []byte{'l', 'r', 'r', 'r'}

	wallets := agg.WalletAddresses()
	count := len(wallets)
	if count > maxTableRows {
		count = maxTableRows
	}

	rows := make([][]string, 0, count)
	for _, wallet := range wallets[:count] {
		stats, ok := agg.WalletStats[wallet]
		if !ok {
			stats = types.UnknownWalletStats()
		}
		rows = append(rows, []string{
			shortAddr(wallet),
			formatPercent(stats.WinRate),
			formatPercent(stats.ROI),
			formatCount(stats.CoinsTraded),
		})
	}

	table := renderTable(headers, rows, align) + remainderNote(len(wallets), count)
	return "\n📊 <b>Wallet stats</b>\n<pre>" + table + "</pre>"
}

func walletLinks(wallets []string, traderURL func(string) string) string {
	count := len(wallets)
	if count > maxTableRows {
		count = maxTableRows
	}

	links := make([]string, 0, count)
	for _, wallet := range wallets[:count] {
		url := traderURL(wallet)
		if url == "" {
			continue
		}
		links = append(links, fmt.Sprintf(`<a href="%s">%s</a>`, url, shortAddr(wallet)))
	}
	if len(links) == 0 {
		return ""
	}
	return "View wallets: " + strings.Join(links, " | ")
}

func shortAddr(address string) string {
	if len(address) <= 4 {
		return address
	}
	return address[len(address)-4:]
}

func remainderNote(total, shown int) string {
	if total <= shown {
		return ""
	}
	return fmt.Sprintf("\n... and %d more", total-shown)
}

// formatAge renders a creation date as a coarse "N days M hours ago" string.
func formatAge(createdAt *time.Time, now time.Time) string {
	if createdAt == nil {
		return "unknown"
	}

	elapsed := now.Sub(*createdAt)
	if elapsed < 0 {
		elapsed = 0
	}

	days := int(elapsed.Hours()) / 24
	hours := int(elapsed.Hours()) % 24
	minutes := int(elapsed.Minutes()) % 60

	var b strings.Builder
	if days > 0 {
		fmt.Fprintf(&b, "%d %s ", days, plural(days, "day"))
	}
	if hours > 0 {
		fmt.Fprintf(&b, "%d %s ", hours, plural(hours, "hour"))
	}
	if days == 0 && minutes > 0 {
		fmt.Fprintf(&b, "%d %s ", minutes, plural(minutes, "minute"))
	}
	b.WriteString("ago")
	return b.String()
}

func plural(n int, unit string) string {
	if n > 1 {
		return unit + "s"
	}
	return unit
}

func formatHoneypot(v *types.HoneypotVerdict) string {
	if v == nil {
		return "unknown"
	}
	if v.IsHoneypot {
		return fmt.Sprintf("⚠️ YES (buy %.1f%%, sell %.1f%%)", v.BuyTax, v.SellTax)
	}
	return fmt.Sprintf("no (buy %.1f%%, sell %.1f%%)", v.BuyTax, v.SellTax)
}

func formatSecurity(v *types.SecurityVerdict) string {
	if v == nil {
		return "unknown"
	}

	var flags []string
	if !v.IsOpenSource {
		flags = append(flags, "closed source")
	}
	if v.HiddenOwner {
		flags = append(flags, "hidden owner")
	}
	if v.CanTakeBackOwnership {
		flags = append(flags, "ownership recoverable")
	}
	if v.IsMintable {
		flags = append(flags, "mintable")
	}
	if v.IsBlacklisted {
		flags = append(flags, "blacklist")
	}

	if len(flags) == 0 {
		return "ok"
	}
	return "⚠️ " + strings.Join(flags, ", ")
}

// formatPrice renders a token price with enough precision to distinguish
// micro-cap prices: 4 significant figures above a cent, and a zero-count
// notation like 0.0(5)123 below it.
func formatPrice(v float64) string {
	if math.IsNaN(v) || v <= 0 {
		return "-"
	}

	switch {
	case v >= 1:
		return strconv.FormatFloat(v, 'g', 4, 64)
	case v >= 0.1:
		return strconv.FormatFloat(v, 'f', 4, 64)
	case v >= 0.01:
		return strconv.FormatFloat(v, 'f', 5, 64)
	}

	exponent := int(math.Floor(math.Log10(v)))
	zeros := -exponent - 1
	base := v / math.Pow(10, float64(exponent))
	digits := strings.Replace(strconv.FormatFloat(base, 'f', 3, 64), ".", "", 1)
	return fmt.Sprintf("0.0(%d)%s", zeros, digits)
}

// formatValue renders a dollar amount with thousands separators, no decimals.
func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}

	neg := v < 0
	s := strconv.FormatFloat(math.Abs(math.Round(v)), 'f', 0, 64)

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func formatPercent(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", v*100)
}

func formatCount(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return strconv.Itoa(int(v))
}

// formatTime compacts a provider timestamp for table display.
func formatTime(providerTime string) string {
	t, err := types.ParseUTCTime(providerTime)
	if err != nil {
		return providerTime
	}
	return t.Format("02 Jan 15:04")
}

// renderTable lays out a padded, pipe-separated table in the markdown style
// the alerts have always used: header row, alignment separator, data rows,
// no outer pipes.
func renderTable(headers []string, rows [][]string, align []byte) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len([]rune(h))
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := len([]rune(cell)); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				b.WriteString(" | ")
			}
			pad := widths[i] - len([]rune(cell))
			if align[i] == 'r' {
				b.WriteString(strings.Repeat(" ", pad))
				b.WriteString(cell)
			} else {
				b.WriteString(cell)
				b.WriteString(strings.Repeat(" ", pad))
			}
		}
		b.WriteByte('\n')
	}

	writeRow(headers)
	for i := range headers {
		if i > 0 {
			b.WriteString(" | ")
		}
		dashes := widths[i] - 1
		if dashes < 2 {
			dashes = 2
		}
		if align[i] == 'r' {
			b.WriteString(strings.Repeat("-", dashes) + ":")
		} else {
			b.WriteString(":" + strings.Repeat("-", dashes))
		}
	}
	b.WriteByte('\n')
	for _, row := range rows {
		writeRow(row)
	}

	return strings.TrimRight(b.String(), "\n")
}
