package assistant

import "fmt"

// Schema describes the twba_* tables to the model.
const Schema = `Database Schema:

Table: twba_transactions
Columns:
- InteractionID (text): Unique transaction identifier
- TransactionDate (timestamptz): Date and time of transaction
- txn_date (date): Date of transaction
- txn_month (timestamp): Month of transaction
- txn_weekday (text): Day of week (Monday, Tuesday, etc.)
- txn_hour (integer): Hour of transaction (0-23)
- timeofday_segment (text): Time segment (Morning, Afternoon, Evening, Late Night)
- Gender (text): Original gender value
- gender_clean (text): Cleaned gender value (Male, Female, Unknown)
- Age (integer): Customer age
- age_bucket (text): Age group (18-24, 25-34, 35-44, 45-54, 55+)
- payment_method (text): Payment method (cash, card, etc.)
- basket_total (numeric): Total transaction amount

Table: twba_items
Columns:
- InteractionID (text): Unique transaction identifier (links to twba_transactions)
- TransactionDate (timestamptz): Date and time of transaction
- gender_clean (text): Cleaned gender value
- age_bucket (text): Age group
- Age (integer): Customer age
- transactionContext_paymentMethod_voice (text): Payment method
- totals_totalAmount_voice (numeric): Total transaction amount
- totalPrice (numeric): Total price for this item
- unitPrice (numeric): Unit price of the item
- quantity (numeric): Quantity purchased
- category (text): Product category
- brandName (text): Brand name
- productName (text): Product name
- sku (text): SKU code
- timeofday_segment (text): Time segment
- txn_weekday (text): Day of week
- round_price_flag (text): Flag for rounded prices

Notes:
- Use JOIN on InteractionID to link twba_transactions and twba_items
- All monetary values are in numeric/decimal format
- Dates should be handled with proper PostgreSQL date functions
- Always use LIMIT for large result sets
`

const systemPrompt = `You are a SQL expert that generates PostgreSQL queries from natural language questions. ` +
	`Always wrap uppercase column names in double quotes (e.g., "InteractionID") and use LOWER() ` +
	`function for case-insensitive value comparisons in WHERE clauses (e.g., WHERE LOWER(column) = LOWER('value')).`

const promptTemplate = `You are a SQL expert. Given a database schema and a natural language question, generate a PostgreSQL SELECT query.

%s
Question: %s

Instructions:
1. Generate ONLY a valid PostgreSQL SELECT query
2. Do not include any explanations, markdown, or code blocks
3. Always include a reasonable LIMIT clause (e.g., LIMIT 100) unless the question specifically asks for all records
4. Use proper JOINs when querying multiple tables
5. Use appropriate aggregate functions (COUNT, SUM, AVG, etc.) when needed
6. Format dates properly using PostgreSQL date functions
7. IMPORTANT: For PostgreSQL column names that contain uppercase letters, wrap them in double quotes (e.g., "InteractionID", "brandName")
8. IMPORTANT: When filtering by specific values in WHERE clauses, always use LOWER() function for case-insensitive matching (e.g., WHERE LOWER(i."brandName") = LOWER('Surf'))
9. Return ONLY the SQL query, nothing else

SQL Query:`

// Prompt is the user message sent for question.
func Prompt(question string) string {
	return fmt.Sprintf(promptTemplate, Schema, question)
}
