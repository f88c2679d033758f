package po

// QuotaLimits 描述单个管理员的上传配额上限。
type QuotaLimits struct {
	ConcurrentLimit int32
	DailyLimit      int32
}

// QuotaState 表示某管理员当前的配额占用快照。
type QuotaState struct {
	AdminID       string
	ActiveUploads int32
	DailyUploads  int32
}
