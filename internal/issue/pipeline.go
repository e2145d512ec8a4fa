package issue

// Result 一次处理的结果，Boundaries与Metadata一一对应且顺序一致
type Result struct {
	Boundaries []Boundary `json:"boundaries"`
	Metadata   []Metadata `json:"metadata"`
}

// Len 返回问题数量
func (r Result) Len() int {
	return len(r.Boundaries)
}

// Empty 未发现任何问题
func (r Result) Empty() bool {
	return len(r.Boundaries) == 0
}

// Rendered 单个问题的渲染结果
type Rendered struct {
	Boundary Boundary
	Name     string
	Err      error
}

// Analyze 扫描页面，划分问题并从每个问题的首页提取元数据
func Analyze(pages []PageText) Result {
	return AnalyzeWith(defaultExtractor, pages)
}

// AnalyzeWith 使用指定的字段提取器
func AnalyzeWith(e *Extractor, pages []PageText) Result {
	boundaries := detectBoundaries(pages, e.labels)
	res := Result{
		Boundaries: boundaries,
		Metadata:   make([]Metadata, 0, len(boundaries)),
	}
	for _, b := range boundaries {
		res.Metadata = append(res.Metadata, e.Extract(b.ID, pages[b.Start].Text))
	}
	return res
}

// RenderAll 为每个问题渲染文件名
// 单个问题的字段缺失只影响该问题，错误记录在对应的Rendered.Err中
func RenderAll(res Result, p Pattern) []Rendered {
	out := make([]Rendered, len(res.Boundaries))
	for i, b := range res.Boundaries {
		name, err := p.Render(res.Metadata[i])
		out[i] = Rendered{Boundary: b, Name: name, Err: err}
	}
	return out
}

// Run 完整流程：页面文本 -> 边界 -> 元数据 -> 文件名
func Run(pages []PageText, p Pattern) (Result, []Rendered) {
	res := Analyze(pages)
	return res, RenderAll(res, p)
}
