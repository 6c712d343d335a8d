package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication / Authorization ────────────────────────────────
	ErrTokenRequired   ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid    ErrCode = "TOKEN_INVALID"
	ErrTokenExpired    ErrCode = "TOKEN_EXPIRED"
	ErrAdminAccessOnly ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound      ErrCode = "NOT_FOUND"
	ErrPaperNotFound ErrCode = "PAPER_NOT_FOUND"
	ErrJobNotFound   ErrCode = "JOB_NOT_FOUND"

	// ─── Grading pipeline ──────────────────────────────────────────────
	ErrQueueUnavailable  ErrCode = "QUEUE_UNAVAILABLE"
	ErrAggregationFailed ErrCode = "AGGREGATION_FAILED"
	ErrScheduleNotFound  ErrCode = "SCHEDULE_NOT_FOUND"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication / Authorization ────────────────────────────────
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."
	case ErrTokenExpired:
		return "Token autentikasi telah kedaluwarsa."
	case ErrAdminAccessOnly:
		return "Sumber daya ini terbatas untuk administrator."

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
	case ErrPaperNotFound:
		return "Paper tidak ditemukan."
	case ErrJobNotFound:
		return "Job penilaian tidak ditemukan."

	// ─── Grading pipeline ──────────────────────────────────────────────
	case ErrQueueUnavailable:
		return "Antrean penilaian sedang tidak tersedia. Silakan coba lagi."
	case ErrAggregationFailed:
		return "Perhitungan statistik paper gagal."
	case ErrScheduleNotFound:
		return "Jadwal pemrosesan tidak ditemukan."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
