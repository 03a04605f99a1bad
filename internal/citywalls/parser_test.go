package citywalls

import (
	"testing"
)

const indexHTML = `<html><body>
<h1>Улицы</h1>
<table>
<tr><td><a href="house-index/search-street123.html">Невский проспект</a></td></tr>
<tr><td><a href="house-index/search-street456.html">Садовая улица</a></td></tr>
<tr><td><a href="/about.html">О сайте</a></td></tr>
</table>
<a href="house-index/search-street789.html">вне таблицы</a>
</body></html>`

func TestParseStreetIndex(t *testing.T) {
	links, err := ParseStreetIndex([]byte(indexHTML), "https://www.citywalls.ru/")
	if err != nil {
		t.Fatalf("ParseStreetIndex: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("got %d links, want 2: %+v", len(links), links)
	}
	if links[0].Name != "Невский проспект" {
		t.Errorf("name = %q", links[0].Name)
	}
	if links[0].URL != "https://www.citywalls.ru/house-index/search-street123.html" {
		t.Errorf("url = %q", links[0].URL)
	}
}

const streetHTML = `<html><body>
<div class="cssHouseHead">
  <h2>Дом компании «Зингер»</h2>
  <div class="photo"><a href="house1234.html"><img src="/photos/1234.jpg"></a></div>
  <div class="address">Невский пр., 28</div>
  <table>
    <tr><td class="item">Архитекторы:</td><td class="value">Сюзор П. Ю.</td></tr>
    <tr><td class="item">Год постройки:</td><td class="value">1902-1904</td></tr>
    <tr><td class="item">Стиль:</td><td class="value">Модерн</td></tr>
  </table>
  <a class="imb_comm" href="house1234.html#comments">37</a>
</div>
<div class="cssHouseHead">
  <h2>Безымянный дом</h2>
  <div class="address">Невский пр., 30</div>
</div>
</body></html>`

func TestParseStreetPage(t *testing.T) {
	buildings, err := ParseStreetPage([]byte(streetHTML), "Невский проспект", "https://www.citywalls.ru/")
	if err != nil {
		t.Fatalf("ParseStreetPage: %v", err)
	}
	if len(buildings) != 2 {
		t.Fatalf("got %d buildings, want 2", len(buildings))
	}

	b := buildings[0]
	if b.Street != "Невский проспект" {
		t.Errorf("street = %q", b.Street)
	}
	if b.Title != "Дом компании «Зингер»" {
		t.Errorf("title = %q", b.Title)
	}
	if b.Address != "Невский пр., 28" {
		t.Errorf("address = %q", b.Address)
	}
	if b.Architects != "Сюзор П. Ю." {
		t.Errorf("architects = %q", b.Architects)
	}
	if b.YearBuilt != "1902-1904" {
		t.Errorf("year = %q", b.YearBuilt)
	}
	if b.Style != "Модерн" {
		t.Errorf("style = %q", b.Style)
	}
	if b.Comments != "37" {
		t.Errorf("comments = %q", b.Comments)
	}
	if b.PhotoURL != "https://www.citywalls.ru/photos/1234.jpg" {
		t.Errorf("photo = %q", b.PhotoURL)
	}
	if b.PageURL != "https://www.citywalls.ru/house1234.html" {
		t.Errorf("page = %q", b.PageURL)
	}

	// Second block has no table and no comment link.
	b2 := buildings[1]
	if b2.Title != "Безымянный дом" {
		t.Errorf("title2 = %q", b2.Title)
	}
	if b2.Comments != "0" {
		t.Errorf("comments2 = %q, want default 0", b2.Comments)
	}
	if b2.Architects != "" || b2.PageURL != "" {
		t.Errorf("unexpected fields on bare block: %+v", b2)
	}
}

func TestParseStreetPageEmpty(t *testing.T) {
	buildings, err := ParseStreetPage([]byte("<html><body><p>ничего</p></body></html>"), "X", DefaultBaseURL)
	if err != nil {
		t.Fatalf("ParseStreetPage: %v", err)
	}
	if len(buildings) != 0 {
		t.Errorf("got %d buildings, want 0", len(buildings))
	}
}
