// Package convert turns raw CAGEDMOV microdata into normalized per-period
// CSV files. It extracts 7z archives, resolves the ministry's inconsistent
// header spellings and encodings, keeps admission movements only, and maps
// demographic codes onto closed category sets with an explicit unknown
// level so no row is lost to a bad code.
//
// Row policy (this directly shapes the statistics downstream):
//   - unrecognized categorical codes become the explicit unknown category,
//     preserving admission counts;
//   - rows whose wage or age cannot be parsed at all are dropped and
//     counted; outlier bounds are NOT applied here but at aggregation, so
//     raw counts stay complete;
//   - malformed rows never abort a file, only a fully unresolvable header
//     does.
package convert
