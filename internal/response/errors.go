package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrWrongPassword      ErrCode = "WRONG_PASSWORD"
	ErrWeakPassword       ErrCode = "WEAK_PASSWORD"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrDeviceRequired ErrCode = "DEVICE_ID_REQUIRED"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrConflict        ErrCode = "CONFLICT"
	ErrActionForbidden ErrCode = "ACTION_FORBIDDEN"

	// ─── Exam tokens ───────────────────────────────────────────────────
	ErrExamTokenInvalid  ErrCode = "EXAM_TOKEN_INVALID"
	ErrAdmissionExpired  ErrCode = "ADMISSION_EXPIRED"
	ErrTokenGenerate     ErrCode = "TOKEN_GENERATE_FAILED"
	ErrExamTokenNotFound ErrCode = "EXAM_TOKEN_NOT_FOUND"
	ErrUnknownCategory   ErrCode = "UNKNOWN_CATEGORY"
	ErrCategoryMismatch  ErrCode = "CATEGORY_TYPE_MISMATCH"

	// ─── Students & sessions ───────────────────────────────────────────
	ErrStudentNotFound   ErrCode = "STUDENT_NOT_FOUND"
	ErrStudentInactive   ErrCode = "STUDENT_INACTIVE"
	ErrSessionNotFound   ErrCode = "SESSION_NOT_FOUND"
	ErrSessionLoad       ErrCode = "SESSION_LOAD_FAILED"
	ErrExamStart         ErrCode = "EXAM_START_FAILED"
	ErrNoResume          ErrCode = "NO_RESUMABLE_SESSION"
	ErrAutosaveFailed    ErrCode = "AUTOSAVE_FAILED"
	ErrSubmitInProgress  ErrCode = "SUBMIT_IN_PROGRESS"
	ErrSubmitFailed      ErrCode = "SUBMIT_FAILED"
	ErrExamNotActive     ErrCode = "EXAM_NOT_ACTIVE"
	ErrInvalidAnswer     ErrCode = "INVALID_ANSWER"
	ErrInvalidNavigation ErrCode = "INVALID_NAVIGATION"

	// ─── Questions & results ───────────────────────────────────────────
	ErrQuestionNotFound ErrCode = "QUESTION_NOT_FOUND"
	ErrBuiltinQuestion  ErrCode = "BUILTIN_QUESTION"
	ErrResultNotFound   ErrCode = "RESULT_NOT_FOUND"
	ErrExportFormat     ErrCode = "EXPORT_FORMAT_UNSUPPORTED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrConnection ErrCode = "CONNECTION_ERROR"
	ErrInternal   ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Login gagal. Periksa username dan password Anda."
	case ErrWrongPassword:
		return "Password saat ini salah."
	case ErrWeakPassword:
		return "Password minimal 8 karakter dan harus mengandung huruf besar, huruf kecil, dan angka."
	case ErrSessionInvalidated:
		return "Sesi Anda telah berakhir. Silakan login kembali."
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."
	case ErrTokenExpired:
		return "Token autentikasi telah kedaluwarsa."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "Anda tidak memiliki izin untuk melakukan tindakan ini."
	case ErrStudentAccessOnly:
		return "Sumber daya ini terbatas untuk siswa."
	case ErrAdminAccessOnly:
		return "Sumber daya ini terbatas untuk administrator."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Data yang dimasukkan tidak valid. Periksa kembali form Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."
	case ErrDeviceRequired:
		return "Header X-Device-ID diperlukan."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."
	case ErrConflict:
		return "Sumber daya sudah ada."
	case ErrActionForbidden:
		return "Tindakan ini tidak diperbolehkan."

	// ─── Exam tokens ───────────────────────────────────────────────────
	case ErrExamTokenInvalid:
		return "Token tidak valid atau sudah digunakan."
	case ErrAdmissionExpired:
		return "Validasi token sudah kedaluwarsa. Silakan masukkan token kembali."
	case ErrTokenGenerate:
		return "Gagal membuat token. Silakan coba lagi."
	case ErrExamTokenNotFound:
		return "Token tidak ditemukan."
	case ErrUnknownCategory:
		return "Kategori ujian tidak dikenal."
	case ErrCategoryMismatch:
		return "Kategori ujian tidak sesuai dengan jenis ujian."

	// ─── Students & sessions ───────────────────────────────────────────
	case ErrStudentNotFound:
		return "Data siswa tidak ditemukan."
	case ErrStudentInactive:
		return "Ujian siswa ini sudah selesai atau dihentikan."
	case ErrSessionNotFound:
		return "Sesi ujian tidak ditemukan."
	case ErrSessionLoad:
		return "Terjadi masalah dengan sesi ujian. Silakan refresh halaman."
	case ErrExamStart:
		return "Gagal memulai ujian. Silakan coba lagi."
	case ErrNoResume:
		return "Tidak ada ujian yang dapat dilanjutkan."
	case ErrAutosaveFailed:
		return "Koneksi bermasalah. Jawaban mungkin tidak tersimpan."
	case ErrSubmitInProgress:
		return "Ujian sedang diselesaikan. Mohon tunggu."
	case ErrSubmitFailed:
		return "Gagal menyimpan hasil ujian. Silakan coba lagi."
	case ErrExamNotActive:
		return "Ujian ini sudah tidak aktif."
	case ErrInvalidAnswer:
		return "Pilihan jawaban tidak valid."
	case ErrInvalidNavigation:
		return "Nomor soal tidak valid."

	// ─── Questions & results ───────────────────────────────────────────
	case ErrQuestionNotFound:
		return "Soal tidak ditemukan."
	case ErrBuiltinQuestion:
		return "Soal bawaan tidak dapat diubah atau dihapus."
	case ErrResultNotFound:
		return "Hasil ujian tidak ditemukan."
	case ErrExportFormat:
		return "Format ekspor tidak didukung."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrConnection:
		return "Koneksi ke database bermasalah. Periksa koneksi internet Anda."
	case ErrInternal:
		return "Terjadi kesalahan sistem. Silakan hubungi administrator."
	default:
		return "Terjadi kesalahan. Silakan coba lagi."
	}
}
