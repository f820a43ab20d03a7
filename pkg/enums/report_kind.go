package enums

// ReportKind buckets Google Play bucket objects by the kind of report
// they carry. Unknown files get a second chance via header sniffing.
type ReportKind string

const (
	ReportKindFinancial    ReportKind = "financial"
	ReportKindSubscription ReportKind = "subscription"
	ReportKindStatistics   ReportKind = "statistics"
	ReportKindUnknown      ReportKind = "unknown"
)

// String implements fmt.Stringer.
func (k ReportKind) String() string {
	return string(k)
}
