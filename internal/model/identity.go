package model

// Identity はセッショントークンから復号した身元クレーム（{email, name, ...}）。
// 1リクエストの間だけコンテキストに保持される。
type Identity map[string]any

// Email はクレームのemailを返す。存在しない、または文字列でない場合は空文字列を返す。
func (i Identity) Email() string {
	s, _ := i["email"].(string)
	return s
}
