package media

import (
	"fmt"
	"log"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/caffix/cloudflare-roundtripper/cfrt"
	"github.com/gocolly/colly"
)

// Fetcher downloads attachment binaries into local files. It satisfies
// database.BlobFetcher.
type Fetcher struct {
	collector *colly.Collector
}

func NewFetcher() *Fetcher {
	return &Fetcher{collector: newCollectorWithCFRoundtripper()}
}

func newCollectorWithCFRoundtripper() *colly.Collector {
	collector := colly.NewCollector(
		colly.IgnoreRobotsTxt(),
		colly.UserAgent("Mozilla"),
	)
	transport, err :=
		cfrt.New(&http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   15 * time.Second,
				KeepAlive: 15 * time.Second,
				DualStack: true,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		})
	if err != nil {
		log.Fatal(err)
	}
	collector.WithTransport(transport)
	collector.Limit(&colly.LimitRule{
		Parallelism: 1,
		RandomDelay: time.Second,
	})
	return collector
}

// Fetch downloads the resource behind remoteURL into destDir under a
// collision-avoiding local name and returns the local path.
func (f *Fetcher) Fetch(remoteURL, destDir string) (local string, err error) {
	name, err := LocalName(remoteURL)
	if err != nil {
		return
	}
	local = filepath.Join(destDir, name)

	c := f.collector.Clone()
	var saveErr error
	saved := false
	c.OnResponse(func(r *colly.Response) {
		saveErr = r.Save(local)
		saved = saveErr == nil
	})
	c.OnError(func(r *colly.Response, e error) {
		saveErr = e
	})
	if err = c.Visit(remoteURL); err != nil {
		return "", err
	}
	if saveErr != nil {
		return "", saveErr
	}
	if !saved {
		return "", fmt.Errorf("no response for %s", remoteURL)
	}
	return local, nil
}

// LocalName derives a local file name from the URL's path basename, capping
// very long names and appending a random disambiguator so repeated basenames
// from different albums cannot collide.
func LocalName(remoteURL string) (string, error) {
	parsed, err := url.Parse(remoteURL)
	if err != nil {
		return "", err
	}
	name := path.Base(parsed.Path)
	if name == "/" || name == "." {
		name = "resource"
	}
	parts := strings.Split(name, ".")
	if len(parts[0]) > 100 {
		parts[0] = parts[0][:100]
	}
	parts[0] += fmt.Sprintf("_%08x", rand.Uint32())
	return strings.Join(parts, "."), nil
}
