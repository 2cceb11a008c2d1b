package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"
	ErrTokenRevoked       ErrCode = "TOKEN_REVOKED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Quiz sessions ─────────────────────────────────────────────────
	ErrConfigRejected     ErrCode = "CONFIG_REJECTED"
	ErrGenerationFailed   ErrCode = "GENERATION_FAILED"
	ErrSessionNotFound    ErrCode = "SESSION_NOT_FOUND"
	ErrSessionClosed      ErrCode = "SESSION_CLOSED"
	ErrInvalidTransition  ErrCode = "INVALID_TRANSITION"
	ErrInvalidAnswer      ErrCode = "INVALID_ANSWER"
	ErrUnknownQuestion    ErrCode = "UNKNOWN_QUESTION"
	ErrInvalidFilter      ErrCode = "INVALID_FILTER"
	ErrSubmissionFailed   ErrCode = "SUBMISSION_FAILED"
	ErrSubmissionInFlight ErrCode = "SUBMISSION_IN_FLIGHT"
	ErrNoActiveSession    ErrCode = "NO_ACTIVE_SESSION"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email atau kata sandi salah."
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."
	case ErrTokenExpired:
		return "Token autentikasi telah kedaluwarsa."
	case ErrTokenRevoked:
		return "Sesi Anda telah berakhir. Silakan login kembali."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."
	case ErrConflict:
		return "Sumber daya sudah ada."

	// ─── Quiz sessions ─────────────────────────────────────────────────
	case ErrConfigRejected:
		return "Konfigurasi kuis tidak dapat dipenuhi oleh bank soal."
	case ErrGenerationFailed:
		return "Gagal menyiapkan soal kuis. Silakan coba lagi."
	case ErrSessionNotFound:
		return "Sesi kuis tidak ditemukan."
	case ErrSessionClosed:
		return "Sesi kuis sudah ditutup."
	case ErrInvalidTransition:
		return "Tindakan ini tidak diperbolehkan pada status sesi saat ini."
	case ErrInvalidAnswer:
		return "Jawaban bukan salah satu pilihan soal."
	case ErrUnknownQuestion:
		return "Soal tidak termasuk dalam sesi ini."
	case ErrInvalidFilter:
		return "Filter tinjauan tidak dikenal."
	case ErrSubmissionFailed:
		return "Pengumpulan gagal. Jawaban Anda tetap tersimpan, silakan kirim ulang."
	case ErrSubmissionInFlight:
		return "Pengumpulan sedang diproses."
	case ErrNoActiveSession:
		return "Tidak ada sesi kuis yang sedang berjalan."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}

// Retryable reports whether a client may repeat the request unchanged.
func Retryable(code ErrCode) bool {
	switch code {
	case ErrSubmissionFailed, ErrSubmissionInFlight, ErrGenerationFailed, ErrRateLimitExceeded:
		return true
	}
	return false
}
