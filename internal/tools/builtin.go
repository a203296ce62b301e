// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package tools

func pathParam(name, description string) Param {
	return Param{Name: name, Description: description, Role: RolePath, Required: true}
}

func textParam(name, description string) Param {
	return Param{Name: name, Description: description, Role: RoleText, Required: true}
}

func intParam(name, description string) Param {
	return Param{Name: name, Description: description, Role: RoleInteger, Required: true}
}

// BuiltinOperations returns the built-in operations in registration order.
// This table is the complete list of what the model can invoke.
func BuiltinOperations() []Operation {
	return []Operation{
		{
			Name:        "install_and_run_script",
			Description: "Install a Python package if necessary and run a script downloaded from a URL with one argument to generate data files",
			Params: []Param{
				textParam("package", "Name of the Python package to install with pip"),
				textParam("script_url", "HTTP(S) URL of the script to download and run"),
				textParam("script_arg", "Single argument passed to the script"),
			},
			Handler: installAndRunScript,
		},
		{
			Name:        "format_file_inplace",
			Description: "Format the contents of a file in place using Prettier",
			Params: []Param{
				pathParam("file_path", "File to format"),
				textParam("prettier_version", "Prettier version to use, e.g. 3.4.2"),
			},
			Handler: formatFileInplace,
		},
		{
			Name:        "count_specific_weekday",
			Description: "Count how many dates in a file fall on a given weekday and write the count to a file",
			Params: []Param{
				pathParam("input_file", "File with one date per line"),
				pathParam("output_file", "File that receives the count"),
				intParam("weekday", "Weekday to count: 0=Monday, 1=Tuesday, 2=Wednesday, 3=Thursday, 4=Friday, 5=Saturday, 6=Sunday"),
			},
			Handler: countSpecificWeekday,
		},
		{
			Name:        "sort_contacts_by_fields",
			Description: "Sort a JSON array of contacts by the given fields in order and write the sorted array",
			Params: []Param{
				pathParam("input_file", "JSON file containing an array of contact objects"),
				pathParam("output_file", "File that receives the sorted JSON array"),
				textParam("sort_fields", "Comma separated field names, most significant first, e.g. last_name,first_name"),
			},
			Handler: sortContactsByFields,
		},
		{
			Name:        "retrieve_log_lines",
			Description: "Take the first lines of the most recently modified .log files in a directory and write them, most recent file first",
			Params: []Param{
				pathParam("input_dir", "Directory containing .log files"),
				pathParam("output_file", "File that receives the collected lines"),
				intParam("lines_per_file", "Number of lines to take from each log file"),
				intParam("max_logs", "Maximum number of log files to read"),
			},
			Handler: retrieveLogLines,
		},
		{
			Name:        "index_files_by_extension",
			Description: "Find all files with an extension under a directory, extract the first line starting with a marker from each, and write a JSON index of relative path to extracted text",
			Params: []Param{
				pathParam("input_dir", "Directory to search recursively"),
				pathParam("output_file", "File that receives the JSON index"),
				textParam("extension", "File extension including the dot, e.g. .md"),
				textParam("marker", "Line prefix to look for, e.g. # for Markdown titles"),
			},
			Handler: indexFilesByExtension,
		},
		{
			Name:        "extract_info_with_llm",
			Description: "Extract specific information (such as the sender's email address) from a text file using the language model and write it to a file",
			Params: []Param{
				pathParam("input_file", "Text file to read"),
				pathParam("output_file", "File that receives the extracted information"),
				textParam("prompt_text", "What to extract, e.g. Extract the sender's email address"),
			},
			Handler: extractInfoWithLLM,
		},
		{
			Name:        "extract_text_from_image",
			Description: "Extract text from an image (for example a credit card number) with OCR, refine it with the language model and write it to a file",
			Params: []Param{
				pathParam("image_path", "Image file to read"),
				pathParam("output_file", "File that receives the extracted text"),
				textParam("prompt_text", "What to extract from the recognized text, e.g. Return the card number without spaces"),
			},
			Handler: extractTextFromImage,
		},
		{
			Name:        "find_most_similar_pair",
			Description: "Find the two most similar lines of a text file using embeddings and write them, sorted, one per line",
			Params: []Param{
				pathParam("input_file", "File with one entry per line"),
				pathParam("output_file", "File that receives the pair"),
			},
			Handler: findMostSimilarPair,
		},
		{
			Name:        "query_db_and_write",
			Description: "Run a read-only SQL query against a SQLite database and write the first value of the first row",
			Params: []Param{
				pathParam("db_file", "SQLite database file"),
				pathParam("output_file", "File that receives the value"),
				textParam("sql_query", "SQL query producing the metric, e.g. SELECT SUM(units*price) FROM tickets WHERE type='Gold'"),
			},
			Handler: queryDBAndWrite,
		},
		{
			Name:        "fetch_data_from_api",
			Description: "Fetch JSON data from an HTTP API with GET or POST and save it to a file",
			Params: []Param{
				textParam("url", "HTTP(S) URL of the API endpoint"),
				pathParam("output_file", "File that receives the JSON response"),
				{Name: "method", Description: "HTTP method", Role: RoleText, Default: "GET", Enum: []string{"GET", "POST"}},
				{Name: "payload", Description: "JSON object sent as the POST body", Role: RoleText, Default: "{}"},
			},
			Handler: fetchDataFromAPI,
		},
		{
			Name:        "clone_repo_and_commit",
			Description: "Clone a git repository into the data directory and make a commit",
			Params: []Param{
				textParam("repo_url", "HTTP(S) URL of the repository"),
				pathParam("output_dir", "Directory to clone into"),
				textParam("commit_msg", "Commit message"),
			},
			Handler: cloneRepoAndCommit,
		},
		{
			Name:        "run_sql_on_db",
			Description: "Run a SQL query on a database file and write every result row, one per line",
			Params: []Param{
				pathParam("db_file", "Database file"),
				pathParam("output_file", "File that receives the rows"),
				textParam("sql_query", "SQL query to run"),
				{Name: "db_type", Description: "Database engine", Role: RoleText, Default: "sqlite", Enum: []string{"sqlite"}},
			},
			Handler: runSQLOnDB,
		},
		{
			Name:        "scrape_website",
			Description: "Download a web page and save its HTML, or only its visible text, to a file",
			Params: []Param{
				textParam("url", "HTTP(S) URL of the page"),
				pathParam("output_file", "File that receives the page"),
				{Name: "text_only", Description: "Save only the visible text instead of the HTML", Role: RoleText, Default: "false", Enum: []string{"true", "false"}},
			},
			Handler: scrapeWebsite,
		},
		{
			Name:        "compress_or_resize_image",
			Description: "Resize an image to the given width and height and save it with the given quality",
			Params: []Param{
				pathParam("input_file", "Image file to read (PNG, JPEG or GIF)"),
				pathParam("output_file", "Image file to write; the extension selects the format"),
				intParam("width", "Target width in pixels"),
				intParam("height", "Target height in pixels"),
				{Name: "quality", Description: "JPEG quality from 1 to 100", Role: RoleInteger, Default: "75"},
			},
			Handler: compressOrResizeImage,
		},
		{
			Name:        "transcribe_audio",
			Description: "Transcribe speech from an audio file (MP3, WAV, M4A) and write the text to a file",
			Params: []Param{
				pathParam("input_file", "Audio file to transcribe"),
				pathParam("output_file", "File that receives the transcript"),
			},
			Handler: transcribeAudio,
		},
		{
			Name:        "convert_md_to_html",
			Description: "Convert a Markdown file to HTML",
			Params: []Param{
				pathParam("input_file", "Markdown file"),
				pathParam("output_file", "File that receives the HTML"),
			},
			Handler: convertMarkdownToHTML,
		},
		{
			Name:        "filter_csv_and_write_json",
			Description: "Filter rows of a CSV file where a column equals a value and write the matching rows as JSON",
			Params: []Param{
				pathParam("input_file", "CSV file with a header row"),
				pathParam("output_file", "File that receives the JSON array"),
				textParam("column", "Column name to filter on"),
				textParam("value", "Value the column must equal"),
			},
			Handler: filterCSVAndWriteJSON,
		},
	}
}
