package extract

import (
	"reflect"
	"testing"
)

func TestPageAbsoluteURL(t *testing.T) {
	p := mustPage(t, "<html><body></body></html>",
		"https://alkoteka.com/catalog/konyak/")

	tests := []struct {
		name     string
		href     string
		expected string
	}{
		{
			name:     "already absolute",
			href:     "https://cdn.alkoteka.com/img/1.jpg",
			expected: "https://cdn.alkoteka.com/img/1.jpg",
		},
		{
			name:     "absolute http kept",
			href:     "http://cdn.alkoteka.com/img/1.jpg",
			expected: "http://cdn.alkoteka.com/img/1.jpg",
		},
		{
			name:     "protocol relative pinned to https",
			href:     "//cdn.alkoteka.com/img/1.jpg",
			expected: "https://cdn.alkoteka.com/img/1.jpg",
		},
		{
			name:     "root relative",
			href:     "/product/1/",
			expected: "https://alkoteka.com/product/1/",
		},
		{
			name:     "document relative",
			href:     "page-2.html",
			expected: "https://alkoteka.com/catalog/konyak/page-2.html",
		},
		{
			name:     "query only",
			href:     "?page=2",
			expected: "https://alkoteka.com/catalog/konyak/?page=2",
		},
		{
			name:     "whitespace trimmed",
			href:     "  /product/2/  ",
			expected: "https://alkoteka.com/product/2/",
		},
		{
			name:     "empty stays empty",
			href:     "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.AbsoluteURL(tt.href); got != tt.expected {
				t.Errorf("AbsoluteURL(%q) = %q, want %q", tt.href, got, tt.expected)
			}
		})
	}
}

func TestPageQueries(t *testing.T) {
	html := `<html><body>
<h1 class="title">  Заголовок  </h1>
<ul>
  <li class="item">один</li>
  <li class="item">  </li>
  <li class="item">два</li>
</ul>
<img class="pic" src=" /a.jpg ">
<img class="pic" src="/b.jpg">
<img class="pic">
</body></html>`
	p := mustPage(t, html, "https://alkoteka.com/")

	if got := p.Text("h1.title"); got != "Заголовок" {
		t.Errorf("Text = %q", got)
	}
	if got := p.Texts("li.item"); !reflect.DeepEqual(got, []string{"один", "два"}) {
		t.Errorf("Texts = %v", got)
	}
	if got := p.Attr("img.pic", "src"); got != "/a.jpg" {
		t.Errorf("Attr = %q", got)
	}
	if got := p.Attrs("img.pic", "src"); !reflect.DeepEqual(got, []string{"/a.jpg", "/b.jpg"}) {
		t.Errorf("Attrs = %v", got)
	}
	if !p.Has("h1.title") || p.Has(".missing") {
		t.Errorf("Has misbehaved")
	}
	if got := p.URL(); got != "https://alkoteka.com/" {
		t.Errorf("URL = %q", got)
	}
}
