// Package exporter writes researcher exports from the store: per-dimension
// CSV files and one Excel workbook with a sheet per dimension plus the
// monthly quality reports. Exports are derived data; deleting the exports
// directory loses nothing.
package exporter
