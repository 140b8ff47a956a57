package domain

// Source 标识结果数据来自实时后端还是静态兜底数据
type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
)

// Result 是带标签的结果：Ok(data)、Fallback(data, reason) 或 Err(reason)。
//
// 调用方据此区分真实数据与占位数据，而不是只看到一个 success 布尔值。
type Result[T any] struct {
	Data   T
	Source Source
	Reason string
	Err    error
}

// Ok 构造来自实时后端的结果
func Ok[T any](data T) Result[T] {
	return Result[T]{Data: data, Source: SourceLive}
}

// Fallback 构造兜底结果，reason 记录为何没有使用实时数据
func Fallback[T any](data T, reason string) Result[T] {
	return Result[T]{Data: data, Source: SourceFallback, Reason: reason}
}

// Failed 构造失败结果
func Failed[T any](err error) Result[T] {
	r := Result[T]{Err: err}
	if err != nil {
		r.Reason = err.Error()
	}
	return r
}

// IsOk 判断是否为实时数据
func (r Result[T]) IsOk() bool {
	return r.Err == nil && r.Source == SourceLive
}

// IsFallback 判断是否为兜底数据
func (r Result[T]) IsFallback() bool {
	return r.Err == nil && r.Source == SourceFallback
}

// IsErr 判断是否失败
func (r Result[T]) IsErr() bool {
	return r.Err != nil
}
