// Package connstring parses mongodb:// connection strings into an
// explicit configuration struct.
package connstring

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotorlabs/rotor-go-driver/internal"
)

// Parse parses the provided uri and returns a URI object.
func Parse(s string) (ConnString, error) {
	var p parser
	err := p.parse(s)
	if err != nil {
		err = internal.WrapErrorf(err, "error parsing uri (%s)", s)
	}
	return p.ConnString, err
}

// ConnString represents a connection string to a database server.
type ConnString struct {
	Original                    string
	AppName                     string
	AuthMechanism               string
	AuthMechanismProperties     map[string]string
	AuthSource                  string
	Compressors                 []string
	ConnectTimeout              time.Duration
	ConnectTimeoutSet           bool
	Database                    string
	Hosts                       []string
	Journal                     bool
	JournalSet                  bool
	MaxConnIdleTime             time.Duration
	MaxConnIdleTimeSet          bool
	MaxConnLifeTime             time.Duration
	MaxConnLifeTimeSet          bool
	MaxPoolSize                 uint16
	MaxPoolSizeSet              bool
	Password                    string
	PasswordSet                 bool
	ServerSelectionTimeout      time.Duration
	ServerSelectionTimeoutSet   bool
	SocketTimeout               time.Duration
	SocketTimeoutSet            bool
	SSL                         bool
	SSLSet                      bool
	SSLInsecure                 bool
	SSLInsecureSet              bool
	SSLCaFile                   string
	SSLCaFileSet                bool
	SSLClientCertificateKeyFile string
	SSLClientCertificateKeySet  bool
	Username                    string
	WString                     string
	WNumber                     int
	WNumberSet                  bool
	WTimeout                    time.Duration
	WTimeoutSet                 bool
}

func (u *ConnString) String() string {
	return u.Original
}

type parser struct {
	ConnString
}

func (p *parser) parse(original string) error {
	p.Original = original

	uri := original
	if !strings.HasPrefix(uri, "mongodb://") {
		return fmt.Errorf("scheme must be \"mongodb\"")
	}
	uri = uri[len("mongodb://"):]

	if idx := strings.Index(uri, "@"); idx != -1 {
		userInfo := uri[:idx]
		uri = uri[idx+1:]

		username := userInfo
		var password string

		if idx := strings.Index(userInfo, ":"); idx != -1 {
			username = userInfo[:idx]
			password = userInfo[idx+1:]
			p.PasswordSet = true
		}

		var err error
		p.Username, err = url.QueryUnescape(username)
		if err != nil {
			return internal.WrapErrorf(err, "invalid username")
		}

		p.Password, err = url.QueryUnescape(password)
		if err != nil {
			return internal.WrapErrorf(err, "invalid password")
		}
	}

	// fetch the hosts field
	hosts := uri
	if idx := strings.IndexAny(uri, "/?@"); idx != -1 {
		if uri[idx] == '@' {
			return fmt.Errorf("unescaped @ sign in user info")
		}
		if uri[idx] == '?' {
			return fmt.Errorf("must have a / before the query ?")
		}
		hosts = uri[:idx]
	}

	for _, host := range strings.Split(hosts, ",") {
		err := p.addHost(host)
		if err != nil {
			return internal.WrapErrorf(err, "invalid host \"%s\"", host)
		}
	}
	if len(p.Hosts) == 0 {
		return fmt.Errorf("must have at least 1 host")
	}

	uri = uri[len(hosts):]

	if len(uri) == 0 {
		return nil
	}

	if uri[0] != '/' {
		return fmt.Errorf("must have a / separator between hosts and path")
	}
	uri = uri[1:]
	if len(uri) == 0 {
		return nil
	}

	database := uri
	if idx := strings.IndexAny(uri, "?"); idx != -1 {
		database = uri[:idx]
	}

	var err error
	p.Database, err = url.QueryUnescape(database)
	if err != nil {
		return internal.WrapErrorf(err, "invalid database \"%s\"", database)
	}

	uri = uri[len(database):]

	if len(uri) == 0 {
		return nil
	}

	if uri[0] != '?' {
		return fmt.Errorf("must have a ? separator between path and query")
	}
	uri = uri[1:]
	if len(uri) == 0 {
		return nil
	}

	for _, pair := range strings.FieldsFunc(uri, func(r rune) bool { return r == ';' || r == '&' }) {
		err := p.addOption(pair)
		if err != nil {
			return err
		}
	}

	return nil
}

func (p *parser) addHost(host string) error {
	if host == "" {
		return nil
	}

	host, err := url.QueryUnescape(host)
	if err != nil {
		return internal.WrapErrorf(err, "invalid host \"%s\"", host)
	}

	_, port, err := splitHostPort(host)
	if err != nil {
		return err
	}

	if port != "" {
		d, err := strconv.Atoi(port)
		if err != nil {
			return internal.WrapErrorf(err, "port must be an integer")
		}
		if d <= 0 || d >= 65536 {
			return fmt.Errorf("port must be in the range [1, 65535]")
		}
	}
	p.Hosts = append(p.Hosts, host)
	return nil
}

// splitHostPort separates an optional trailing port from a host, with
// square brackets delimiting an IPv6 literal.
func splitHostPort(host string) (string, string, error) {
	if strings.HasPrefix(host, "[") {
		end := strings.Index(host, "]")
		if end == -1 {
			return "", "", fmt.Errorf("missing closing bracket in IPv6 host")
		}
		switch {
		case end == len(host)-1:
			return host[1:end], "", nil
		case host[end+1] == ':':
			return host[1:end], host[end+2:], nil
		default:
			return "", "", fmt.Errorf("invalid character after IPv6 host")
		}
	}

	if idx := strings.LastIndex(host, ":"); idx != -1 {
		return host[:idx], host[idx+1:], nil
	}
	return host, "", nil
}

func (p *parser) addOption(pair string) error {
	kv := strings.SplitN(pair, "=", 2)
	if len(kv) != 2 || kv[0] == "" {
		return fmt.Errorf("invalid option")
	}

	key, err := url.QueryUnescape(kv[0])
	if err != nil {
		return internal.WrapErrorf(err, "invalid option key \"%s\"", kv[0])
	}

	value, err := url.QueryUnescape(kv[1])
	if err != nil {
		return internal.WrapErrorf(err, "invalid option value \"%s\"", kv[1])
	}

	lowerKey := strings.ToLower(key)
	switch lowerKey {
	case "appname":
		p.AppName = value
	case "authmechanism":
		p.AuthMechanism = value
	case "authmechanismproperties":
		p.AuthMechanismProperties = make(map[string]string)
		pairs := strings.Split(value, ",")
		for _, pair := range pairs {
			kv := strings.SplitN(pair, ":", 2)
			if len(kv) != 2 || kv[0] == "" {
				return fmt.Errorf("invalid authMechanism property")
			}
			p.AuthMechanismProperties[kv[0]] = kv[1]
		}
	case "authsource":
		p.AuthSource = value
	case "compressors":
		p.Compressors = strings.Split(value, ",")
	case "connecttimeoutms":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid value for %s: %s", key, value)
		}
		p.ConnectTimeout = time.Duration(n) * time.Millisecond
		p.ConnectTimeoutSet = true
	case "journal", "j":
		switch value {
		case "true":
			p.Journal = true
		case "false":
			p.Journal = false
		default:
			return fmt.Errorf("invalid value for %s: %s", key, value)
		}
		p.JournalSet = true
	case "maxidletimems":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid value for %s: %s", key, value)
		}
		p.MaxConnIdleTime = time.Duration(n) * time.Millisecond
		p.MaxConnIdleTimeSet = true
	case "maxlifetimems":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid value for %s: %s", key, value)
		}
		p.MaxConnLifeTime = time.Duration(n) * time.Millisecond
		p.MaxConnLifeTimeSet = true
	case "maxpoolsize":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 || n > 65535 {
			return fmt.Errorf("invalid value for %s: %s", key, value)
		}
		p.MaxPoolSize = uint16(n)
		p.MaxPoolSizeSet = true
	case "serverselectiontimeoutms":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid value for %s: %s", key, value)
		}
		p.ServerSelectionTimeout = time.Duration(n) * time.Millisecond
		p.ServerSelectionTimeoutSet = true
	case "sockettimeoutms":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid value for %s: %s", key, value)
		}
		p.SocketTimeout = time.Duration(n) * time.Millisecond
		p.SocketTimeoutSet = true
	case "ssl", "tls":
		switch value {
		case "true":
			p.SSL = true
		case "false":
			p.SSL = false
		default:
			return fmt.Errorf("invalid value for %s: %s", key, value)
		}
		p.SSLSet = true
	case "sslinsecure", "tlsinsecure":
		switch value {
		case "true":
			p.SSLInsecure = true
		case "false":
			p.SSLInsecure = false
		default:
			return fmt.Errorf("invalid value for %s: %s", key, value)
		}
		p.SSLInsecureSet = true
	case "sslcertificateauthorityfile", "sslcafile", "tlscafile":
		p.SSLCaFile = value
		p.SSLCaFileSet = true
	case "sslclientcertificatekeyfile", "tlscertificatekeyfile":
		p.SSLClientCertificateKeyFile = value
		p.SSLClientCertificateKeySet = true
	case "w":
		if n, err := strconv.Atoi(value); err == nil {
			if n < 0 {
				return fmt.Errorf("invalid value for %s: %s", key, value)
			}
			p.WNumber = n
			p.WNumberSet = true
			p.WString = ""
			break
		}
		p.WString = value
		p.WNumberSet = false
	case "wtimeoutms":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid value for %s: %s", key, value)
		}
		p.WTimeout = time.Duration(n) * time.Millisecond
		p.WTimeoutSet = true
	default:
		// unknown options are ignored
	}

	return nil
}
