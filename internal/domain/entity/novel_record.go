package entity

import "time"

// TimeLayout 记录时间格式，定宽 UTC，字典序与时间序一致
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// FormatTime 按记录格式输出 UTC 时间
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// NovelRecord 持久化记录
type NovelRecord struct {
	ID         string `json:"id"`
	StateJSON  string `json:"state_json"`
	CreateTime string `json:"create_time"`
	UpdateTime string `json:"update_time"`
	Version    int    `json:"version"`
}

// Decode 解析记录中的快照
func (r *NovelRecord) Decode() (*Novel, error) {
	novel, _, err := DecodeSnapshot([]byte(r.StateJSON))
	if err != nil {
		return nil, err
	}
	if novel.ID != r.ID {
		novel.ID = r.ID
	}
	return novel, nil
}
