package services

// Page 页码从 1 开始
type Page struct {
	Number int
	Limit  int
}

// NewPage 规范化分页参数，limit 为 0 时取默认值，超过上限时截断
func NewPage(number, limit, def, max int) Page {
	if number < 1 {
		number = 1
	}
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return Page{Number: number, Limit: limit}
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}
