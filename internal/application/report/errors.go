package report

import "github.com/erp/dues/internal/domain/shared"

// ErrArchiveDisabled is returned by ExportReport when no archive is configured
var ErrArchiveDisabled = shared.NewDomainError("ARCHIVE_DISABLED", "Report archive is not configured")
