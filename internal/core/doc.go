// Package core provides the business logic for expense CSV datasets.
//
// This package contains all domain logic independent of any transport or
// storage implementation. It can be used by web handlers, CLI tools, or
// tests without modification.
//
// # Model
//
// One uploaded CSV becomes a [Dataset]: its metadata plus an ordered set
// of rows. The header is fixed at upload time and every row aligns with
// it positionally, so the original column order and row order survive
// storage, JSON rendering, and CSV reconstruction.
//
// # Upload Flow
//
//  1. [Validate] checks extension, size, encoding, header, and column
//     counts, and collects amount/date warnings.
//  2. The original bytes go to the [Archiver] first.
//  3. [Store.CreateDataset] persists metadata and rows in one
//     transaction; if it fails the archived file is removed.
//
// The [UploadLimiter] caps how many uploads run at once.
//
// # Error Handling
//
// Client-visible failures are [*UserError] values carrying a stable
// [Kind], a user-facing message in the product language, and a support
// code. Unexpected technical errors are translated by [MapError]:
//
//   - FILE001-FILE004: file errors (extension, size, encoding, empty)
//   - VAL001-VAL003: header and row validation errors
//   - ARG001-ARG003: request parameter errors
//   - DB001-DB005, SYS001-SYS005: mapped technical failures
package core
