package transform

import (
	"fmt"

	"tailorpress/internal/config"
)

// DefaultSystemPrompt is the stage 1 system instruction. The emphasis on
// completeness exists because smaller models tend to return a sample
// with a single company instead of the full resume.
const DefaultSystemPrompt = `You are an expert resume writer specializing in ATS-optimized, storytelling resumes. You ALWAYS provide complete, professional resumes with ALL experiences included - never samples, never partial content, never just one company. Every resume you create is ready for real job applications.`

// DefaultUserPromptTemplate is the stage 1 user prompt. The two
// placeholders are the job description and the original resume text, in
// that order.
const DefaultUserPromptTemplate = `You are an expert resume writer with deep analytical skills. Your task is to completely transform the resume to perfectly match the job description while maintaining authenticity and professionalism.

JOB DESCRIPTION:
%s

ORIGINAL RESUME:
%s

CRITICAL REQUIREMENTS - READ CAREFULLY:

STEP 1: COMPREHENSIVE ANALYSIS
- Extract ALL companies, roles, and positions from the original resume
- Identify the unique storyline and achievements for EACH company/role
- Map each experience to relevant job description requirements
- Note all technical skills, projects, and accomplishments mentioned

STEP 2: COMPLETE TRANSFORMATION (NOT SAMPLES)
- Transform EVERY single company/role experience - do not skip any
- For EACH position, create 4-6 detailed bullet points (not just 2-3)
- Ensure ALL sections are complete: Experience, Projects, Skills, Education
- Include ALL original companies and roles - nothing should be omitted

STEP 3: CONTENT QUALITY GUIDELINES
- Tone: Professional but friendly, confident but not arrogant
- Accuracy: Maintain all factual information (company names, dates, titles, locations)
- Quantification: Include specific numbers, metrics, percentages, and results where possible
- Relevance: Highlight experiences that directly align with job requirements
- Consistency: Use consistent formatting and verb tense (past tense for past roles)
- Authenticity: Do NOT over-exaggerate or fabricate achievements - stay truthful to the original

STEP 4: STRUCTURE REQUIREMENTS
- Professional Experience: List ALL roles with company, title, dates, and location
  * Each role must have 4-6 bullet points describing achievements
  * Focus on impact, results, and skills relevant to the job description
  * Use action verbs (Led, Built, Implemented, Optimized, etc.)

- Technical Projects: Include ALL projects with detailed descriptions
  * Each project: 3-4 bullet points explaining what was built and the impact

- Technical Skills: Comprehensive list matching job requirements
  * Group by category (Languages, Frameworks, Tools, etc.)

- Education: Complete education section with degrees, institutions, dates, GPA if mentioned

OUTPUT FORMAT:
Return the COMPLETE transformed resume in plain text format with clear section headers:
- Use "### PROFESSIONAL EXPERIENCE" for work experience
- Use "### TECHNICAL PROJECTS" for projects
- Use "### TECHNICAL SKILLS" for skills, grouped by bold category lines
- Use "### EDUCATION" for education
- Include header with name, contact info, location, email, LinkedIn, GitHub

REASONING PROCESS - FOLLOW THESE STEPS:
1. First, mentally extract ALL companies and roles from the resume - list them all
2. For each role, identify 4-6 key achievements that match the job description
3. Transform each bullet point to highlight relevant skills and results
4. Ensure consistent professional tone throughout - friendly but not over-exaggerated
5. Verify ALL sections are complete before finalizing - check that nothing is missing

IMPORTANT: This must be a COMPLETE, PROFESSIONAL resume ready for job applications - not a sample or partial version. Include every detail from the original resume, transformed to match the job description.`

// buildPrompts resolves the stage 1 prompts, preferring custom prompts
// loaded from config over the built-in defaults.
func buildPrompts(resumeText, jobDescription string) (systemPrompt, userPrompt string) {
	loaded := config.LoadedPrompts()

	systemPrompt = DefaultSystemPrompt
	if loaded.TransformSystem != "" {
		systemPrompt = loaded.TransformSystem
	}

	template := DefaultUserPromptTemplate
	if loaded.TransformUser != "" {
		template = loaded.TransformUser
	}
	userPrompt = fmt.Sprintf(template, jobDescription, resumeText)

	return systemPrompt, userPrompt
}
