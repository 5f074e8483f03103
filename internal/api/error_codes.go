// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"
	ErrorForbidden     = "FORBIDDEN"
	ErrorUnauthorized  = "UNAUTHORIZED"

	// 小说相关错误
	ErrorNovelNotFound     = "NOVEL_NOT_FOUND"
	ErrorNovelCreateFailed = "NOVEL_CREATE_FAILED"
	ErrorNovelInvalid      = "NOVEL_INVALID"

	// 场景生成相关错误
	ErrorGenerationFailed   = "GENERATION_FAILED"
	ErrorGenerationInFlight = "GENERATION_IN_FLIGHT"
	ErrorStaleBase          = "STALE_BASE"
	ErrorSceneInvalid       = "SCENE_INVALID"

	// LLM服务相关错误
	ErrorLLMServiceUnavailable = "LLM_SERVICE_UNAVAILABLE"
	ErrorLLMConfigInvalid      = "LLM_CONFIG_INVALID"

	// 用户相关错误
	ErrorUserNotFound = "USER_NOT_FOUND"
	ErrorLoginFailed  = "LOGIN_FAILED"
)
