package middleware

import "context"

var requestStateContextKey = contextKey("request_state")

// requestState はログ用にリクエスト処理中に判明した情報を保持する。
// ロギングミドルウェアが生成し、内側のミドルウェアが書き込む。
type requestState struct {
	email string
}

func withRequestState(ctx context.Context) (context.Context, *requestState) {
	st := &requestState{}
	return context.WithValue(ctx, requestStateContextKey, st), st
}

// setRequestEmail は認証済みユーザーのemailをログ用に記録する。
// ロギングミドルウェアを通っていない場合は何もしない。
func setRequestEmail(ctx context.Context, email string) {
	if st, ok := ctx.Value(requestStateContextKey).(*requestState); ok {
		st.email = email
	}
}
