package notion

// RichText 富文本片段，只保留纯文本
type RichText struct {
	PlainText string `json:"plain_text"`
}

// FileRef 外链或托管文件
type FileRef struct {
	Type     string `json:"type"`
	Name     string `json:"name,omitempty"`
	External *struct {
		URL string `json:"url"`
	} `json:"external,omitempty"`
	File *struct {
		URL string `json:"url"`
	} `json:"file,omitempty"`
}

// URL 返回文件地址
func (f *FileRef) URL() string {
	if f == nil {
		return ""
	}
	switch {
	case f.Type == "external" && f.External != nil:
		return f.External.URL
	case f.Type == "file" && f.File != nil:
		return f.File.URL
	case f.External != nil:
		return f.External.URL
	case f.File != nil:
		return f.File.URL
	}
	return ""
}

// SelectOption 单选或多选项
type SelectOption struct {
	Name string `json:"name"`
}

// DateValue 日期属性
type DateValue struct {
	Start string `json:"start"`
}

// Property 页面属性，不同 type 只填充对应字段
type Property struct {
	Type           string         `json:"type"`
	Title          []RichText     `json:"title,omitempty"`
	RichText       []RichText     `json:"rich_text,omitempty"`
	Select         *SelectOption  `json:"select,omitempty"`
	MultiSelect    []SelectOption `json:"multi_select,omitempty"`
	Date           *DateValue     `json:"date,omitempty"`
	Checkbox       bool           `json:"checkbox,omitempty"`
	Number         *float64       `json:"number,omitempty"`
	URL            *string        `json:"url,omitempty"`
	Files          []FileRef      `json:"files,omitempty"`
	CreatedTime    string         `json:"created_time,omitempty"`
	LastEditedTime string         `json:"last_edited_time,omitempty"`
}

// Page 数据库中的一条记录
type Page struct {
	ID             string              `json:"id"`
	CreatedTime    string              `json:"created_time"`
	LastEditedTime string              `json:"last_edited_time"`
	Cover          *FileRef            `json:"cover"`
	Properties     map[string]Property `json:"properties"`
}

// DatabaseProperty 数据库列定义
type DatabaseProperty struct {
	Type   string `json:"type"`
	Select *struct {
		Options []SelectOption `json:"options"`
	} `json:"select,omitempty"`
	MultiSelect *struct {
		Options []SelectOption `json:"options"`
	} `json:"multi_select,omitempty"`
}

// Database 数据库结构
type Database struct {
	ID         string                      `json:"id"`
	Properties map[string]DatabaseProperty `json:"properties"`
}

// SelectOptions 返回某个单选列的全部选项名
func (d Database) SelectOptions(property string) []string {
	p, ok := d.Properties[property]
	if !ok || p.Select == nil {
		return []string{}
	}
	out := make([]string, 0, len(p.Select.Options))
	for _, o := range p.Select.Options {
		out = append(out, o.Name)
	}
	return out
}
