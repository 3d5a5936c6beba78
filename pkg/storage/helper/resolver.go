package helper

import (
	"fmt"

	"github.com/marmos91/dittostore/pkg/path"
	"github.com/marmos91/dittostore/pkg/storage"
)

// RepoResolver resolves <REPO:ARCHIVE> to archive[/<stanza>] and
// <REPO:BACKUP> to backup[/<stanza>].
//
// An archive path whose last component is a WAL segment name, with one or
// two components after the expression, is sharded under the first 16
// characters of that name: <REPO:ARCHIVE>/16-1/000000010000000000000001
// becomes archive/<stanza>/16-1/0000000100000000/000000010000000000000001.
func RepoResolver(stanza string) storage.Resolver {
	return func(p path.Path) (path.Path, error) {
		switch p.Root() {
		case ExprRepoArchive:
			base, err := stanzaPath(PathArchive, stanza)
			if err != nil {
				return path.Path{}, err
			}
			out, err := p.ResolveExpression(base)
			if err != nil {
				return path.Path{}, err
			}
			if n := p.Len(); (n == 1 || n == 2) && walName.MatchString(p.Name()) {
				wal := p.Name()
				dir, err := out.Parent()
				if err != nil {
					return path.Path{}, err
				}
				return dir.Append(wal[:16], wal)
			}
			return out, nil

		case ExprRepoBackup:
			base, err := stanzaPath(PathBackup, stanza)
			if err != nil {
				return path.Path{}, err
			}
			return p.ResolveExpression(base)

		default:
			return path.Path{}, fmt.Errorf("%w: '%s' is not a repository expression", ErrInvalidExpression, p.Root())
		}
	}
}

// SpoolResolver resolves <SPOOL:ARCHIVE> to archive/<stanza> and the IN
// and OUT variants to its in and out directories.
func SpoolResolver(stanza string) storage.Resolver {
	return func(p path.Path) (path.Path, error) {
		if stanza == "" {
			return path.Path{}, ErrStanzaRequired
		}
		base, err := stanzaPath(PathArchive, stanza)
		if err != nil {
			return path.Path{}, err
		}

		switch p.Root() {
		case ExprSpoolArchive:
		case ExprSpoolArchiveIn:
			base, err = base.Append("in")
		case ExprSpoolArchiveOut:
			base, err = base.Append("out")
		default:
			return path.Path{}, fmt.Errorf("%w: '%s' is not a spool expression", ErrInvalidExpression, p.Root())
		}
		if err != nil {
			return path.Path{}, err
		}
		return p.ResolveExpression(base)
	}
}

// stanzaPath is dir, or dir/stanza when stanza is set.
func stanzaPath(dir, stanza string) (path.Path, error) {
	base := path.MustParse(dir)
	if stanza == "" {
		return base, nil
	}
	if err := ValidStanza(stanza); err != nil {
		return path.Path{}, err
	}
	return base.Append(stanza)
}

// ValidStanza reports whether stanza can name a directory.
func ValidStanza(stanza string) error {
	p, err := path.Parse(stanza)
	if err != nil || !p.IsRelative() || p.Len() != 1 || p.Component(0) != stanza || stanza == "." || stanza == ".." {
		return fmt.Errorf("%w: '%s'", ErrInvalidStanza, stanza)
	}
	return nil
}
