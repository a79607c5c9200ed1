package githubauth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

const (
	sourceDeclarationSeparatorConstant = ":"
	environmentSourceKeywordConstant   = "env"
	fileSourceKeywordConstant          = "file"
	missingTokenMessageConstant        = "GitHub token not found; set GITHUB_TOKEN or configure github.token_source"
	missingReferenceTemplateConstant   = "token source %s requires a reference"
	unsetVariableTemplateConstant      = "environment variable %s is not set"
	unreadableFileTemplateConstant     = "unable to read token file %s: %w"
	blankFileTemplateConstant          = "token file %s is empty"
	unknownSourceKeywordTemplate       = "unsupported token source type %q"
)

// ErrTokenNotFound indicates that no token source produced a value.
var ErrTokenNotFound = errors.New(missingTokenMessageConstant)

// TokenSourceType enumerates the supported token retrieval mechanisms.
type TokenSourceType string

// Token source types.
const (
	TokenSourceTypeEnvironment TokenSourceType = environmentSourceKeywordConstant
	TokenSourceTypeFile        TokenSourceType = fileSourceKeywordConstant
)

// TokenSource names where a token is read from, such as "env:GITHUB_TOKEN" or "file:/run/secrets/github".
type TokenSource struct {
	Type      TokenSourceType
	Reference string
}

// FileReader reads the contents of a file path.
type FileReader func(path string) ([]byte, error)

// ParseTokenSource interprets a declaration. A value without a keyword names an environment variable.
func ParseTokenSource(declaration string) (TokenSource, error) {
	keyword, reference, hasKeyword := strings.Cut(strings.TrimSpace(declaration), sourceDeclarationSeparatorConstant)
	if !hasKeyword {
		keyword, reference = environmentSourceKeywordConstant, keyword
	}

	source := TokenSource{
		Type:      TokenSourceType(strings.ToLower(strings.TrimSpace(keyword))),
		Reference: strings.TrimSpace(reference),
	}
	if source.Type != TokenSourceTypeEnvironment && source.Type != TokenSourceTypeFile {
		return TokenSource{}, fmt.Errorf(unknownSourceKeywordTemplate, source.Type)
	}
	if len(source.Reference) == 0 {
		return TokenSource{}, fmt.Errorf(missingReferenceTemplateConstant, source.Type)
	}
	return source, nil
}

// TokenResolver retrieves tokens from configured sources.
type TokenResolver struct {
	lookupVariable EnvironmentLookup
	readFile       FileReader
}

// NewTokenResolver creates a resolver backed by the process environment and filesystem unless overridden.
func NewTokenResolver(environmentLookup EnvironmentLookup, fileReader FileReader) *TokenResolver {
	resolver := &TokenResolver{lookupVariable: environmentLookup, readFile: fileReader}
	if resolver.lookupVariable == nil {
		resolver.lookupVariable = os.LookupEnv
	}
	if resolver.readFile == nil {
		resolver.readFile = os.ReadFile
	}
	return resolver
}

// Resolve reads the token named by the declaration, or the conventional variables when it is blank.
func (resolver *TokenResolver) Resolve(resolutionContext context.Context, declaration string) (string, error) {
	if contextError := resolutionContext.Err(); contextError != nil {
		return "", contextError
	}

	if len(strings.TrimSpace(declaration)) == 0 {
		if token, found := ResolveToken(resolver.lookupVariable); found {
			return token, nil
		}
		return "", ErrTokenNotFound
	}

	source, parseError := ParseTokenSource(declaration)
	if parseError != nil {
		return "", parseError
	}
	if source.Type == TokenSourceTypeFile {
		return resolver.fromFile(source.Reference)
	}
	return resolver.fromVariable(source.Reference)
}

func (resolver *TokenResolver) fromVariable(name string) (string, error) {
	value, _ := resolver.lookupVariable(name)
	if token := strings.TrimSpace(value); len(token) > 0 {
		return token, nil
	}
	return "", fmt.Errorf(unsetVariableTemplateConstant, name)
}

func (resolver *TokenResolver) fromFile(path string) (string, error) {
	contents, readError := resolver.readFile(path)
	if readError != nil {
		return "", fmt.Errorf(unreadableFileTemplateConstant, path, readError)
	}
	if token := strings.TrimSpace(string(contents)); len(token) > 0 {
		return token, nil
	}
	return "", fmt.Errorf(blankFileTemplateConstant, path)
}
