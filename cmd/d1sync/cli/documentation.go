// Copyright 2025 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"bytes"
	"text/template"

	"github.com/dolthub/d1-sync/libraries/utils/argparser"
)

// CommandDocumentationContent is the static help content of one command.
// Doc strings may use the template placeholders of DocFormat, so the same
// text renders for the terminal or for markdown.
type CommandDocumentationContent struct {
	ShortDesc string
	LongDesc  string
	Synopsis  []string
}

// CommandDocumentation is documentation bound to a concrete invocation
// string and the command's arg parser.
type CommandDocumentation struct {
	CommandStr string
	ShortDesc  string
	LongDesc   string
	Synopsis   []string
	ArgParser  *argparser.ArgParser
}

// NewCommandDocumentation returns a CommandDocumentation for the content and
// parser. The command string is filled in at print time.
func NewCommandDocumentation(cmdDoc CommandDocumentationContent, argParser *argparser.ArgParser) *CommandDocumentation {
	return &CommandDocumentation{
		ShortDesc: cmdDoc.ShortDesc,
		LongDesc:  cmdDoc.LongDesc,
		Synopsis:  cmdDoc.Synopsis,
		ArgParser: argParser,
	}
}

// CommandDocsForCommandString binds the doc content to the full command
// string used to invoke it, e.g. "d1-sync push".
func CommandDocsForCommandString(commandStr string, cmdDoc CommandDocumentationContent, argParser *argparser.ArgParser) CommandDocumentation {
	return CommandDocumentation{commandStr, cmdDoc.ShortDesc, cmdDoc.LongDesc, cmdDoc.Synopsis, argParser}
}

func (cmdDoc CommandDocumentation) GetShortDesc() string {
	return cmdDoc.ShortDesc
}

func (cmdDoc CommandDocumentation) GetLongDesc(format DocFormat) (string, error) {
	return templateDocStringHelper(cmdDoc.LongDesc, format)
}

func (cmdDoc CommandDocumentation) GetSynopsis(format DocFormat) ([]string, error) {
	lines := make([]string, len(cmdDoc.Synopsis))
	for i, line := range cmdDoc.Synopsis {
		formatted, err := templateDocStringHelper(line, format)
		if err != nil {
			return nil, err
		}
		lines[i] = formatted
	}

	return lines, nil
}

func templateDocStringHelper(docString string, docFormat DocFormat) (string, error) {
	templ, err := template.New("description").Parse(docString)
	if err != nil {
		return "", err
	}
	var templBuffer bytes.Buffer
	if err := templ.Execute(&templBuffer, docFormat); err != nil {
		return "", err
	}
	return templBuffer.String(), nil
}

// DocFormat is the set of strings substituted for the doc template
// placeholders {{.LessThan}}, {{.GreaterThan}}, {{.EmphasisLeft}} and
// {{.EmphasisRight}}.
type DocFormat struct {
	LessThan      string
	GreaterThan   string
	EmphasisLeft  string
	EmphasisRight string
}

var MarkdownFormat = DocFormat{"`<", ">`", "`", "`"}
var CliFormat = DocFormat{"<", ">", "<b>", "</b>"}
