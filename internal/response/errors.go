package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrTeacherAccessOnly ErrCode = "TEACHER_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	ErrQuotaExceeded       ErrCode = "QUOTA_EXCEEDED"
	ErrQuizNotAvailable    ErrCode = "QUIZ_NOT_AVAILABLE"
	ErrInvalidAttemptState ErrCode = "INVALID_ATTEMPT_STATE"
	ErrTimeExpired         ErrCode = "TIME_EXPIRED"
	ErrUnknownQuestion     ErrCode = "UNKNOWN_QUESTION"
	ErrInvalidAnswer       ErrCode = "INVALID_ANSWER"

	// ─── Quiz authoring ────────────────────────────────────────────────
	ErrNotQuizAuthor   ErrCode = "NOT_QUIZ_AUTHOR"
	ErrQuizNotDraft    ErrCode = "QUIZ_NOT_DRAFT"
	ErrNoQuestions     ErrCode = "NO_QUESTIONS"
	ErrInvalidQuestion ErrCode = "INVALID_QUESTION"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."
	case ErrTokenExpired:
		return "Token autentikasi telah kedaluwarsa."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "Anda tidak memiliki izin untuk mengakses sumber daya ini."
	case ErrStudentAccessOnly:
		return "Sumber daya ini terbatas untuk siswa."
	case ErrTeacherAccessOnly:
		return "Sumber daya ini terbatas untuk guru."

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

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	case ErrQuotaExceeded:
		return "Jatah percobaan kuis ini sudah habis."
	case ErrQuizNotAvailable:
		return "Kuis ini saat ini tidak tersedia."
	case ErrInvalidAttemptState:
		return "Percobaan ini sudah dikumpulkan."
	case ErrTimeExpired:
		return "Waktu pengerjaan telah habis."
	case ErrUnknownQuestion:
		return "Pertanyaan tidak termasuk dalam kuis ini."
	case ErrInvalidAnswer:
		return "Format jawaban tidak sesuai dengan jenis pertanyaan."

	// ─── Quiz authoring ────────────────────────────────────────────────
	case ErrNotQuizAuthor:
		return "Anda bukan pembuat kuis ini."
	case ErrQuizNotDraft:
		return "Kuis ini tidak dalam status DRAFT."
	case ErrNoQuestions:
		return "Kuis ini tidak memiliki pertanyaan."
	case ErrInvalidQuestion:
		return "Pertanyaan tidak valid."

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
