package format

import (
	"os"
	"strings"

	"tailorpress/internal/errors"
)

// DefaultTemplate is the built-in resume template the formatting stage
// instructs the model to fill in. It is self-contained: pdflatex
// compiles it without external data files or shell escapes.
const DefaultTemplate = `%-------------------------------------------
% Resume template
%-------------------------------------------

\documentclass[letterpaper,11pt]{article}

\usepackage{latexsym}
\usepackage[empty]{fullpage}
\usepackage{titlesec}
\usepackage[usenames,dvipsnames]{color}
\usepackage{verbatim}
\usepackage{enumitem}
\usepackage{fancyhdr}
\usepackage[hidelinks]{hyperref}

\pagestyle{fancy}
\fancyhf{}
\fancyfoot{}
\renewcommand{\headrulewidth}{0pt}
\renewcommand{\footrulewidth}{0pt}

% Adjust margins
\addtolength{\oddsidemargin}{-0.475in}
\addtolength{\evensidemargin}{-0.375in}
\addtolength{\textwidth}{1in}
\addtolength{\topmargin}{-.5in}
\addtolength{\textheight}{1.0in}

\urlstyle{same}

\raggedright
\setlength{\tabcolsep}{0in}

% Sections formatting
\titleformat{\section}{
  \vspace{-4pt}\scshape\raggedright\large
}{}{0em}{}[\color{black}\titlerule \vspace{-5pt}]

% Custom commands
\newcommand{\resumeItem}[2]{
  \item{
    \textbf{#1}{: \small #2 \vspace{-2pt}}
  }
}

\newcommand{\resumeEduEntry}[4]{
  \vspace{-1pt}\item
    \begin{tabular*}{0.97\textwidth}{l@{\extracolsep{\fill}}r}
      \textbf{#1} & #2 \\
      \textit{#3} & \textit{#4} \\
    \end{tabular*}\vspace{-5pt}
}

\newcommand{\resumeExpEntry}[5]{
  \vspace{-1pt}\item
    \begin{tabular*}{0.97\textwidth}{l@{\extracolsep{\fill}}r}
      \textbf{#1} & #2 \\
      \textit{#3 $\cdot$ #4} & \textit{#5} \\
    \end{tabular*}\vspace{-5pt}
}

\newcommand{\resumeSubItem}[2]{\resumeItem{#1}{#2}\vspace{-4pt}}

\renewcommand{\labelitemii}{$\circ$}

\newcommand{\resumeSubHeadingListStart}{\begin{itemize}[leftmargin=*,label={}]}
\newcommand{\resumeSubHeadingListEnd}{\end{itemize}}
\newcommand{\resumeItemListStart}{\begin{itemize}}
\newcommand{\resumeItemListEnd}{\end{itemize}\vspace{-5pt}}

\begin{document}

% Heading: name, contact line

% Section{Experience}
%   \resumeSubHeadingListStart ... \resumeSubHeadingListEnd

% Section{Projects}

% Section{Programming Skills}

% Section{Education}

\end{document}`

// LoadTemplate reads a custom template from disk, falling back to the
// built-in one when path is empty.
func LoadTemplate(path string) (string, error) {
	if path == "" {
		return DefaultTemplate, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewIOError(errors.ErrCodeFileNotFound,
				"Template not found: "+path, err)
		}
		return "", errors.NewIOError(errors.ErrCodeFileNotReadable,
			"Cannot read template: "+path, err)
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return "", errors.NewValidationError(errors.ErrCodeInvalidFormat,
			"Template file is empty: "+path, nil)
	}

	return content, nil
}
