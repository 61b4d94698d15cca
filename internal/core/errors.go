package core

// errors.go defines the error model shared by the validator, the service,
// and the HTTP boundary.
//
// Every client-visible failure carries a Kind (stable machine-readable
// category), a user-facing message in Japanese (the product language), and
// a short support code. Technical detail stays on the wrapped error and is
// only ever logged, never returned to clients.
//
// # Error Codes Reference
//
//	FILE001 - 拡張子が .csv ではない            (kind: invalid_extension, HTTP 400)
//	FILE002 - ファイルサイズ超過                (kind: payload_too_large, HTTP 413)
//	FILE003 - UTF-8として読めない               (kind: encoding_error, HTTP 400)
//	FILE004 - 空のCSV                           (kind: empty_file, HTTP 400)
//	VAL001  - ヘッダに空の列名                  (kind: duplicate_header, HTTP 400)
//	VAL002  - ヘッダに重複                      (kind: duplicate_header, HTTP 400)
//	VAL003  - 行の列数不一致                    (kind: column_count_mismatch, HTTP 400)
//	ARG001  - period形式不正                    (kind: invalid_argument, HTTP 400)
//	ARG002  - page/size指定不正                 (kind: invalid_argument, HTTP 400)
//	ARG003  - フィルタ指定不正                  (kind: invalid_argument, HTTP 400)
//	DS001   - データセットが存在しない          (kind: not_found, HTTP 404)
//	DS002   - 該当データなし                    (kind: not_found, HTTP 404)
//	UPL001  - アップロード混雑                  (kind: too_many_uploads, HTTP 503)
//	AUTH001 - 認証失敗                          (kind: unauthorized, HTTP 401)
//	ERR000  - 予期しないエラー                  (kind: internal_error, HTTP 500)
//
// Unexpected errors (database, filesystem) are additionally run through
// MapError, which matches known technical patterns case-insensitively and
// returns a friendlier message plus a DB/SYS code for support staff. The
// first matching pattern wins, so specific patterns come before general
// ones.

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the machine-readable error category exposed to API clients.
type Kind string

const (
	KindInvalidExtension    Kind = "invalid_extension"
	KindPayloadTooLarge     Kind = "payload_too_large"
	KindEncodingError       Kind = "encoding_error"
	KindEmptyFile           Kind = "empty_file"
	KindDuplicateHeader     Kind = "duplicate_header"
	KindColumnCountMismatch Kind = "column_count_mismatch"
	KindInvalidArgument     Kind = "invalid_argument"
	KindNotFound            Kind = "not_found"
	KindTooManyUploads      Kind = "too_many_uploads"
	KindUnauthorized        Kind = "unauthorized"
	KindInternal            Kind = "internal_error"
)

// ErrDatasetNotFound is returned by stores when a dataset id does not exist.
var ErrDatasetNotFound = errors.New("dataset not found")

// ErrNoMatchingRows is returned when a filtered export matches nothing.
var ErrNoMatchingRows = errors.New("no matching rows")

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened, in the product language
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// UserError pairs a technical error with the message shown to users.
// The technical half is preserved for logging via Unwrap.
type UserError struct {
	Kind      Kind
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	if e.Technical != nil {
		return e.Technical.Error()
	}
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError builds a UserError for a kind using its canonical message.
// The technical error may be nil when the user message says it all.
func NewUserError(kind Kind, technical error) *UserError {
	return &UserError{Kind: kind, Technical: technical, User: kindMessage(kind)}
}

// userErrorf builds a UserError with a custom user message, keeping the
// canonical action and code for the kind. Used where the message needs
// request detail (line numbers, column names).
func userErrorf(kind Kind, code string, technical error, format string, args ...any) *UserError {
	msg := kindMessage(kind)
	msg.Message = fmt.Sprintf(format, args...)
	if code != "" {
		msg.Code = code
	}
	return &UserError{Kind: kind, Technical: technical, User: msg}
}

// kindMessages holds the canonical user message per kind.
var kindMessages = map[Kind]UserMessage{
	KindInvalidExtension: {
		Message: "CSVファイル（.csv）のみアップロード可能です。",
		Action:  "拡張子が .csv のファイルを選択してください。",
		Code:    "FILE001",
	},
	KindPayloadTooLarge: {
		Message: "ファイルサイズが上限を超えています。",
		Action:  "ファイルを分割してアップロードしてください。",
		Code:    "FILE002",
	},
	KindEncodingError: {
		Message: "ファイルをUTF-8として読み込めません。",
		Action:  "ファイルをUTF-8で保存し直してください。",
		Code:    "FILE003",
	},
	KindEmptyFile: {
		Message: "CSVが空です。",
		Action:  "ヘッダ行とデータを含むCSVをアップロードしてください。",
		Code:    "FILE004",
	},
	KindDuplicateHeader: {
		Message: "ヘッダに重複があります。",
		Action:  "列名が一意になるように修正してください。",
		Code:    "VAL002",
	},
	KindColumnCountMismatch: {
		Message: "列数が一致しない行があります。",
		Action:  "すべての行の列数をヘッダに合わせてください。",
		Code:    "VAL003",
	},
	KindInvalidArgument: {
		Message: "リクエストパラメータが不正です。",
		Action:  "パラメータを確認して再度お試しください。",
		Code:    "ARG001",
	},
	KindNotFound: {
		Message: "指定されたデータセットが見つかりません。",
		Action:  "データセットIDを確認してください。",
		Code:    "DS001",
	},
	KindTooManyUploads: {
		Message: "アップロードが混み合っています。",
		Action:  "しばらく待ってから再度お試しください。",
		Code:    "UPL001",
	},
	KindUnauthorized: {
		Message: "認証に失敗しました。",
		Action:  "ユーザー名とパスワードを確認してください。",
		Code:    "AUTH001",
	},
	KindInternal: {
		Message: "予期しないエラーが発生しました。",
		Action:  "時間をおいて再度お試しください。",
		Code:    "ERR000",
	},
}

// kindMessage returns the canonical message for a kind, falling back to
// the internal-error message for unknown kinds.
func kindMessage(kind Kind) UserMessage {
	if m, ok := kindMessages[kind]; ok {
		return m
	}
	return kindMessages[KindInternal]
}

// KindOf extracts the error kind from any error in the chain.
// Sentinels map to their kinds; everything else is internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Kind
	}
	switch {
	case errors.Is(err, ErrDatasetNotFound), errors.Is(err, ErrNoMatchingRows):
		return KindNotFound
	case errors.Is(err, ErrTooManyUploads):
		return KindTooManyUploads
	}
	return KindInternal
}

// AsUserError normalizes any error to a UserError. Known sentinels get
// their canonical messages; unrecognized errors go through MapError so
// database and filesystem failures still read sensibly.
func AsUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	var ue *UserError
	if errors.As(err, &ue) {
		return ue
	}
	switch {
	case errors.Is(err, ErrDatasetNotFound):
		return NewUserError(KindNotFound, err)
	case errors.Is(err, ErrNoMatchingRows):
		return userErrorf(KindNotFound, "DS002", err, "該当データがありません。")
	case errors.Is(err, ErrTooManyUploads):
		return NewUserError(KindTooManyUploads, err)
	}
	return &UserError{Kind: KindInternal, Technical: err, User: MapError(err)}
}

// errorPattern defines a technical pattern to match and its user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error substrings (case-insensitive) to user
// messages. First match wins: specific patterns before general ones.
var errorPatterns = []errorPattern{
	// Database constraint and connection errors
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "データベースに重複するレコードがあります。",
			Action:  "アップロード内容を確認してください。",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "データベースに接続できません。",
			Action:  "しばらく待ってから再度お試しください。",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "データベース接続が中断されました。",
			Action:  "再度お試しください。",
			Code:    "DB003",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "データベースが混雑しています。",
			Action:  "再度お試しください。",
			Code:    "DB004",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "処理がタイムアウトしました。",
			Action:  "小さいファイルで再度お試しください。",
			Code:    "DB005",
		},
	},

	// Filesystem errors from the archive directory
	{
		pattern: "no such file",
		msg: UserMessage{
			Message: "保存されたファイルが見つかりません。",
			Action:  "管理者に連絡してください。",
			Code:    "SYS001",
		},
	},
	{
		pattern: "permission denied",
		msg: UserMessage{
			Message: "ファイルの保存に失敗しました。",
			Action:  "管理者に連絡してください。",
			Code:    "SYS002",
		},
	},
	{
		pattern: "no space left",
		msg: UserMessage{
			Message: "サーバーの空き容量が不足しています。",
			Action:  "管理者に連絡してください。",
			Code:    "SYS003",
		},
	},

	// Request lifecycle
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "リクエストがキャンセルされました。",
			Action:  "再度お試しください。",
			Code:    "SYS004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "リクエストがタイムアウトしました。",
			Action:  "小さいファイルで再度お試しください。",
			Code:    "SYS005",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
// Support staff should check application logs for the original technical
// error when users report ERR000.
var defaultMessage = UserMessage{
	Message: "予期しないエラーが発生しました。",
	Action:  "時間をおいて再度お試しください。",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match, or the ERR000 fallback when nothing matches.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// IsUserFacing reports whether an error carries a message intended for
// end users, as opposed to an internal failure that should be masked.
func IsUserFacing(err error) bool {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Kind != KindInternal
	}
	return false
}
