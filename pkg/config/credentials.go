package config

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"strings"
)

// splitRunAs splits a "user[:group]" value.
func splitRunAs(value string) (usr, group string, err error) {
	usr, group, hasGroup := strings.Cut(value, ":")
	if usr == "" || (hasGroup && group == "") {
		return "", "", fmt.Errorf("expected USER[:GROUP], got %q", value)
	}
	return usr, group, nil
}

// Credentials resolves RunAs to the numeric IDs the child should run as.
// Names are looked up in the user database; numbers are taken as they are.
// Without a group, the user's primary group is used, or the current group
// for a numeric user the database does not know. Both are 0 when RunAs is
// empty.
func (d *Description) Credentials() (uid, gid uint32, err error) {
	if d.RunAs == "" {
		return 0, 0, nil
	}
	name, group, err := splitRunAs(d.RunAs)
	if err != nil {
		return 0, 0, err
	}

	var primary string
	if n, perr := strconv.ParseUint(name, 10, 32); perr == nil {
		uid = uint32(n)
		if u, lerr := user.LookupId(name); lerr == nil {
			primary = u.Gid
		} else {
			primary = strconv.Itoa(os.Getgid())
		}
	} else {
		u, lerr := user.Lookup(name)
		if lerr != nil {
			return 0, 0, lerr
		}
		n, perr := strconv.ParseUint(u.Uid, 10, 32)
		if perr != nil {
			return 0, 0, fmt.Errorf("user %s: invalid uid %q", name, u.Uid)
		}
		uid = uint32(n)
		primary = u.Gid
	}

	if group == "" {
		group = primary
	}
	if n, perr := strconv.ParseUint(group, 10, 32); perr == nil {
		return uid, uint32(n), nil
	}
	g, lerr := user.LookupGroup(group)
	if lerr != nil {
		return 0, 0, lerr
	}
	n, perr := strconv.ParseUint(g.Gid, 10, 32)
	if perr != nil {
		return 0, 0, fmt.Errorf("group %s: invalid gid %q", group, g.Gid)
	}
	return uid, uint32(n), nil
}
