package blocksync

import "github.com/goliatone/go-blocksync/internal/runtimeconfig"

var (
	ErrBaseURLRequired         = runtimeconfig.ErrBaseURLRequired
	ErrBaseURLInvalid          = runtimeconfig.ErrBaseURLInvalid
	ErrDebounceDelayInvalid    = runtimeconfig.ErrDebounceDelayInvalid
	ErrRequestTimeoutInvalid   = runtimeconfig.ErrRequestTimeoutInvalid
	ErrFlushTimeoutInvalid     = runtimeconfig.ErrFlushTimeoutInvalid
	ErrFlushAttemptsInvalid    = runtimeconfig.ErrFlushAttemptsInvalid
	ErrPolicyFieldConflict     = runtimeconfig.ErrPolicyFieldConflict
	ErrServerAddrRequired      = runtimeconfig.ErrServerAddrRequired
	ErrStorageProviderUnknown  = runtimeconfig.ErrStorageProviderUnknown
	ErrStorageDSNRequired      = runtimeconfig.ErrStorageDSNRequired
	ErrCacheTTLInvalid         = runtimeconfig.ErrCacheTTLInvalid
	ErrRefreshScheduleInvalid  = runtimeconfig.ErrRefreshScheduleInvalid
	ErrLoggingProviderRequired = runtimeconfig.ErrLoggingProviderRequired
	ErrLoggingProviderUnknown  = runtimeconfig.ErrLoggingProviderUnknown
	ErrLoggingLevelInvalid     = runtimeconfig.ErrLoggingLevelInvalid
	ErrLoggingFormatInvalid    = runtimeconfig.ErrLoggingFormatInvalid
)

type (
	Config        = runtimeconfig.Config
	SyncConfig    = runtimeconfig.SyncConfig
	PolicyConfig  = runtimeconfig.PolicyConfig
	ServerConfig  = runtimeconfig.ServerConfig
	StorageConfig = runtimeconfig.StorageConfig
	CacheConfig   = runtimeconfig.CacheConfig
	RefreshConfig = runtimeconfig.RefreshConfig
	LoggingConfig = runtimeconfig.LoggingConfig
	Features      = runtimeconfig.Features
)

func DefaultConfig() Config {
	return runtimeconfig.DefaultConfig()
}
