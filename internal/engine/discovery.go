package engine

import (
	"context"
	"fmt"

	"orgsync/internal/config"
	gh "orgsync/internal/github"

	"github.com/google/go-github/v81/github"
)

const (
	defaultPerPage = 100
	// maxListPages stops a server that never returns an empty page.
	maxListPages = 1000
)

// Lister produces the Batch for one run.
type Lister interface {
	List(ctx context.Context) (Batch, error)
}

// OrgLister lists every repository owned by a GitHub organization.
type OrgLister struct {
	Client   *gh.Client
	Org      string
	BasePath string
	// Protocol selects the remote address: config.ProtocolSSH (default) or
	// config.ProtocolHTTPS.
	Protocol string
	// PerPage defaults to 100.
	PerPage int
}

// List pages through GET /orgs/{org}/repos until an empty page is returned.
// Any failed page aborts the listing with a *FetchError; partial results are
// never returned. Repositories are de-duplicated by name, first wins.
func (l *OrgLister) List(ctx context.Context) (Batch, error) {
	if l.Client == nil || l.Client.Client == nil {
		return nil, &FetchError{Org: l.Org, Page: 1, Err: fmt.Errorf("github client is nil")}
	}

	perPage := l.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}

	seen := make(map[string]struct{})
	batch := make(Batch, 0, perPage)

	opts := &github.RepositoryListByOrgOptions{
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	for page := 1; ; page++ {
		if page > maxListPages {
			return nil, &FetchError{Org: l.Org, Page: page, Err: fmt.Errorf("no empty page after %d pages", maxListPages)}
		}
		opts.Page = page

		repos, _, err := l.Client.Client.Repositories.ListByOrg(ctx, l.Org, opts)
		if err != nil {
			return nil, &FetchError{Org: l.Org, Page: page, Err: err}
		}
		if len(repos) == 0 {
			break
		}

		for _, repo := range repos {
			name := repo.GetName()
			if name == "" {
				return nil, &FetchError{Org: l.Org, Page: page, Err: fmt.Errorf("repository without a name in response")}
			}
			if _, dup := seen[name]; dup {
				continue
			}
			remote := l.remoteFor(repo)
			if remote == "" {
				return nil, &FetchError{Org: l.Org, Page: page, Err: fmt.Errorf("repository %q has no %s remote", name, l.protocol())}
			}
			seen[name] = struct{}{}
			batch = append(batch, NewWorkItem(l.BasePath, name, remote))
		}
	}

	return batch, nil
}

func (l *OrgLister) protocol() string {
	if l.Protocol == "" {
		return config.ProtocolSSH
	}
	return l.Protocol
}

func (l *OrgLister) remoteFor(repo *github.Repository) string {
	if l.protocol() == config.ProtocolHTTPS {
		return repo.GetCloneURL()
	}
	return repo.GetSSHURL()
}
