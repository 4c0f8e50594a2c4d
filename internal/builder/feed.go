// internal/builder/feed.go
package builder

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/feeds"

	"pagesmith/internal/config"
	"pagesmith/internal/content"
	"pagesmith/internal/errs"
)

// feedFile plans dest/<page>.rss, an RSS 2.0 feed of the page's entries in
// discovery order.
func feedFile(site *config.Site, page config.Page, entries []*content.Entry) (File, error) {
	title := page.RSSName
	if title == "" {
		title = page.Name
	}
	pageURL, err := absoluteURL(site.BaseURL, "/"+page.Name+"/")
	if err != nil {
		return File{}, errs.New(errs.ErrConfig, err).WithPage(page.Name)
	}

	feed := &feeds.Feed{
		Title:       title,
		Link:        &feeds.Link{Href: pageURL},
		Description: page.Description,
		Id:          pageURL,
	}
	for _, e := range entries {
		link, err := absoluteURL(site.BaseURL, e.URL())
		if err != nil {
			return File{}, errs.New(errs.ErrConfig, err).WithPage(page.Name).WithEntry(e.Slug)
		}
		item := &feeds.Item{
			Title:       e.Metadata.Title,
			Link:        &feeds.Link{Href: link},
			Id:          link,
			Description: e.Metadata.Summary,
			Content:     string(e.Content),
			Created:     e.Metadata.CreatedAt,
		}
		if e.Metadata.UpdatedAt != nil {
			item.Updated = *e.Metadata.UpdatedAt
		}
		if e.Metadata.AuthorEmail != "" {
			item.Author = &feeds.Author{Email: e.Metadata.AuthorEmail}
		}
		feed.Items = append(feed.Items, item)
		feed.Created = latest(feed.Created, e.Metadata.CreatedAt)
	}

	rss, err := feed.ToRss()
	if err != nil {
		return File{}, errs.New(errs.ErrOutputWrite, err).WithPage(page.Name)
	}
	return File{
		Path: filepath.Join(site.DestPath(), page.Name+".rss"),
		Data: []byte(rss),
		Page: page.Name,
	}, nil
}

// absoluteURL joins a site-absolute path onto base. Without a base URL the
// path is returned as is.
func absoluteURL(base, p string) (string, error) {
	if base == "" {
		return p, nil
	}
	u, err := url.JoinPath(base, strings.Trim(p, "/"))
	if err != nil {
		return "", err
	}
	if strings.HasSuffix(p, "/") {
		u += "/"
	}
	return u, nil
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
