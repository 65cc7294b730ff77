// Package fetch downloads Novo CAGED microdata archives from the Ministry
// of Labor FTP server. Downloads are idempotent by filename, completed
// months are recorded in a period manifest so re-runs only visit new ones,
// and every network operation is retried a bounded number of times before
// the file is skipped with a warning.
package fetch
