package constants

import "strings"

// ExportFormat names a supported export serialization.
type ExportFormat string

const (
	ExportCSV   ExportFormat = "csv"
	ExportExcel ExportFormat = "excel"
)

// ExportFormats holds the accepted values for the export format path segment.
var ExportFormats = []ExportFormat{ExportCSV, ExportExcel}

var exportExtensions = map[ExportFormat]string{
	ExportCSV:   "csv",
	ExportExcel: "xlsx",
}

var exportContentTypes = map[ExportFormat]string{
	ExportCSV:   "text/csv; charset=utf-8",
	ExportExcel: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// ParseExportFormat normalizes user input ("CSV", "xlsx", "excel") into an ExportFormat.
func ParseExportFormat(s string) (ExportFormat, bool) {
	switch NormalizeExt(s) {
	case "csv":
		return ExportCSV, true
	case "excel", "xlsx", "spreadsheet":
		return ExportExcel, true
	}
	return "", false
}

// Ext returns the file extension (without dot) for the format.
func (f ExportFormat) Ext() string { return exportExtensions[f] }

// ContentType returns the MIME type served for the format.
func (f ExportFormat) ContentType() string { return exportContentTypes[f] }

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
